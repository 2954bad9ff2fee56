package history

import (
	"sync"
	"time"

	"github.com/your-org/facetrack/internal/models"
	"github.com/your-org/facetrack/internal/observability"
)

// DefaultCapacity bounds the in-memory detection history.
const DefaultCapacity = 100

// Store is a capacity-bounded, newest-first buffer of detection events.
// Appends come from the engine's single processing loop; reads (stats,
// export, API queries) may happen from HTTP handlers, so all access is
// serialized behind the store's lock.
type Store struct {
	mu       sync.RWMutex
	capacity int
	events   []models.DetectionEvent // index 0 is the newest event
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity}
}

// Append inserts the event at the front and evicts the oldest event when the
// store is at capacity.
func (s *Store) Append(ev models.DetectionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append([]models.DetectionEvent{ev}, s.events...)
	if len(s.events) > s.capacity {
		s.events = s.events[:s.capacity]
	}
	observability.HistorySize.Set(float64(len(s.events)))
}

// Events returns a snapshot of all events, newest first.
func (s *Store) Events() []models.DetectionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.DetectionEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *Store) Capacity() int {
	return s.capacity
}

// Query returns the events matching pred, newest first. The result is an
// independent snapshot and can be iterated any number of times.
func (s *Store) Query(pred func(models.DetectionEvent) bool) []models.DetectionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.DetectionEvent, 0, len(s.events))
	for _, ev := range s.events {
		if pred(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Stats summarizes events captured at or after asOf.
type Stats struct {
	Total         int        `json:"total"`
	Known         int        `json:"known"`
	Unknown       int        `json:"unknown"`
	Entries       int        `json:"entries"`
	Exits         int        `json:"exits"`
	LastDetection *time.Time `json:"last_detection,omitempty"`
}

// Stats computes counts over events with CapturedAt >= asOf. The boundary is
// inclusive; callers typically pass the start of the current day.
func (s *Store) Stats(asOf time.Time) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	for _, ev := range s.events {
		if ev.CapturedAt.Before(asOf) {
			continue
		}
		st.Total++
		if ev.Known() {
			st.Known++
		} else {
			st.Unknown++
		}
		switch ev.Movement {
		case models.MovementEntry:
			st.Entries++
		case models.MovementExit:
			st.Exits++
		}
		if st.LastDetection == nil || ev.CapturedAt.After(*st.LastDetection) {
			t := ev.CapturedAt
			st.LastDetection = &t
		}
	}
	return st
}

// Sessions derives per-identity session state from the stored events.
// Unknown detections carry no identity and are excluded.
func (s *Store) Sessions() map[string]models.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make(map[string]models.SessionState)
	// Events are newest-first, so the first entry/exit seen per identity is
	// the latest one.
	for i := range s.events {
		ev := s.events[i]
		if !ev.Known() {
			continue
		}
		st, ok := sessions[ev.IdentityID]
		if !ok {
			st = models.SessionState{IdentityID: ev.IdentityID}
		}
		evCopy := ev
		switch ev.Movement {
		case models.MovementEntry:
			if st.LastEntry == nil {
				st.LastEntry = &evCopy
			}
		case models.MovementExit:
			if st.LastExit == nil {
				st.LastExit = &evCopy
			}
		}
		sessions[ev.IdentityID] = st
	}
	return sessions
}

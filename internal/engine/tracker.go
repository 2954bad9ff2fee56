package engine

import (
	"sync"

	"github.com/your-org/facetrack/internal/models"
)

// Notifier delivers an attendance record to the backend. Implementations are
// fire-and-forget: they must not block the caller and their failures are
// logged, never returned.
type Notifier interface {
	NotifyAttendance(rec models.AttendanceRecord)
}

// Tracker maintains per-identity inside/outside state and classifies each
// detection event as an entry or an exit. Unknown detections share one
// bucket keyed by the empty identity ID.
type Tracker struct {
	mu        sync.Mutex
	inside    map[string]bool
	notifiers []Notifier
}

func NewTracker(notifiers ...Notifier) *Tracker {
	return &Tracker{
		inside:    make(map[string]bool),
		notifiers: notifiers,
	}
}

// Classify writes the movement type into the event based on the identity's
// current state (outside -> entry, inside -> exit; no prior state defaults
// to entry), flips the state, and dispatches the attendance notification.
// The classification is a function of tracker state at this moment, not of
// any later timestamp comparison.
func (t *Tracker) Classify(ev *models.DetectionEvent) {
	t.mu.Lock()
	key := ev.IdentityID
	if t.inside[key] {
		ev.Movement = models.MovementExit
	} else {
		ev.Movement = models.MovementEntry
	}
	t.inside[key] = !t.inside[key]
	t.mu.Unlock()

	rec := models.AttendanceRecord{
		EmployeeID: key,
		Name:       ev.DisplayName,
		Timestamp:  ev.CapturedAt,
		Movement:   ev.Movement,
	}
	if rec.EmployeeID == "" {
		rec.EmployeeID = "unknown"
	}
	for _, n := range t.notifiers {
		n.NotifyAttendance(rec)
	}
}

// Seed sets an identity's state without emitting an event, e.g. when
// restoring state at startup.
func (t *Tracker) Seed(identityID string, inside bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inside[identityID] = inside
}

// Inside reports the tracker's view of an identity's current state.
func (t *Tracker) Inside(identityID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inside[identityID]
}

// InsideCount returns how many known identities are currently inside.
func (t *Tracker) InsideCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for id, in := range t.inside {
		if in && id != "" {
			count++
		}
	}
	return count
}

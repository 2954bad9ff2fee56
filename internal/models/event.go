package models

import (
	"math"
	"time"
)

type Movement string

const (
	MovementEntry Movement = "entry"
	MovementExit  Movement = "exit"
)

// UnknownPersonName is the display name for detections that could not be
// resolved to an enrolled identity.
const UnknownPersonName = "Unknown Person"

// BoundingBox is a detected face region in source-frame pixel space.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RawDetection is the detector's output for one face region before identity
// resolution. Score is the model's relative confidence in [0,1].
type RawDetection struct {
	Box   BoundingBox
	Score float32
}

// ConfidencePercent converts the raw score to the integer percentage reported
// to callers.
func (d RawDetection) ConfidencePercent() int {
	return int(math.Round(float64(d.Score) * 100))
}

// Identity is a match from the known-identity directory.
type Identity struct {
	ID    string
	Name  string
	Score float32
}

// DetectionEvent is one resolved sighting. Immutable once appended to the
// history store; IdentityID is empty exactly when DisplayName is the unknown
// sentinel.
type DetectionEvent struct {
	ID          string       `json:"id"`
	IdentityID  string       `json:"identity_id,omitempty"`
	DisplayName string       `json:"display_name"`
	Confidence  int          `json:"confidence"` // integer percentage [0,100]
	CapturedAt  time.Time    `json:"captured_at"`
	Movement    Movement     `json:"movement"`
	SourceLabel string       `json:"source_label"`
	Box         *BoundingBox `json:"box,omitempty"`
}

// Known reports whether the event resolved to an enrolled identity.
func (e DetectionEvent) Known() bool {
	return e.IdentityID != ""
}

// SessionState is the derived per-identity entry/exit state, recomputed from
// history events grouped by identity.
type SessionState struct {
	IdentityID string          `json:"identity_id"`
	LastEntry  *DetectionEvent `json:"last_entry,omitempty"`
	LastExit   *DetectionEvent `json:"last_exit,omitempty"`
}

// Inside reports whether the identity is currently inside: no exit recorded,
// or the latest entry is strictly later than the latest exit.
func (s SessionState) Inside() bool {
	if s.LastEntry == nil {
		return false
	}
	if s.LastExit == nil {
		return true
	}
	return s.LastEntry.CapturedAt.After(s.LastExit.CapturedAt)
}

// AttendanceRecord is the payload delivered to the attendance backend when a
// movement is classified.
type AttendanceRecord struct {
	EmployeeID string    `json:"employee_id"` // "unknown" for unresolved detections
	Name       string    `json:"name"`
	Timestamp  time.Time `json:"timestamp"`
	Movement   Movement  `json:"movement"`
}

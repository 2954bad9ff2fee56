package dto

import "github.com/your-org/facetrack/internal/models"

// EventResponse is the API shape of one detection event.
type EventResponse struct {
	ID          string              `json:"id"`
	IdentityID  string              `json:"identity_id,omitempty"`
	DisplayName string              `json:"display_name"`
	Confidence  int                 `json:"confidence"`
	CapturedAt  string              `json:"captured_at"`
	Movement    string              `json:"movement"`
	Location    string              `json:"location"`
	Box         *models.BoundingBox `json:"box,omitempty"`
	SnapshotURL string              `json:"snapshot_url,omitempty"`
}

type EventListResponse struct {
	Events []EventResponse `json:"events"`
	Total  int             `json:"total"`
}

// SessionResponse is the derived entry/exit state for one identity.
type SessionResponse struct {
	IdentityID string `json:"identity_id"`
	Inside     bool   `json:"inside"`
	LastEntry  string `json:"last_entry,omitempty"`
	LastExit   string `json:"last_exit,omitempty"`
}

// WSEvent is a WebSocket message for real-time event delivery.
type WSEvent struct {
	Type string        `json:"type"` // face_detected, face_recognized
	Data EventResponse `json:"data"`
}

// EngineStatusResponse reports the engine's run state. DetectorReady lets
// the dashboard distinguish "recognition unavailable" from "no one in
// frame"; both produce an empty detection stream.
type EngineStatusResponse struct {
	Running       bool   `json:"running"`
	DetectorReady bool   `json:"detector_ready"`
	ActiveModel   string `json:"active_model,omitempty"`
	InsideCount   int    `json:"inside_count"`
}

package models

import "time"

type ModelStatus string

const (
	ModelStatusActive   ModelStatus = "active"
	ModelStatusInactive ModelStatus = "inactive"
)

// ArtifactKind distinguishes the built-in detector from user-uploaded weights.
type ArtifactKind string

const (
	ArtifactBuiltIn ArtifactKind = "builtin"
	ArtifactCustom  ArtifactKind = "custom"
)

// ArtifactRef points at the model weights backing a descriptor. Custom
// artifacts live in object storage under Key; the built-in detector has no
// stored artifact at all.
type ArtifactRef struct {
	Kind ArtifactKind `json:"kind"`
	Key  string       `json:"key,omitempty"`
	Size int64        `json:"size,omitempty"`
}

// ModelDescriptor is the metadata record for an installable detector model.
// It is distinct from the loaded runtime handle, which the registry caches
// separately keyed by descriptor ID.
type ModelDescriptor struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Version    string      `json:"version"`
	Status     ModelStatus `json:"status"`
	Accuracy   string      `json:"accuracy"` // display-only, set after upload processing
	UploadedAt time.Time   `json:"uploaded_at"`
	Artifact   ArtifactRef `json:"artifact"`
}

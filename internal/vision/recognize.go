package vision

import (
	"context"
	"fmt"
	"image"

	"github.com/your-org/facetrack/internal/models"
)

// Recognizer maps a detected face region to an enrolled identity. A nil
// result with nil error means "no identity signal"; the resolver turns that
// into an unknown-person event. Implementations must be deterministic for a
// given frame and directory state.
type Recognizer interface {
	Identify(ctx context.Context, frame image.Image, det models.RawDetection) (*models.Identity, error)
}

// FaceIndex is the known-identity directory: a similarity search over
// enrolled face embeddings.
type FaceIndex interface {
	SearchIdentity(ctx context.Context, embedding []float32, threshold float64) (*models.Identity, error)
}

// FaceRecognizer resolves identities by embedding the face crop with ArcFace
// and searching the pgvector-backed directory.
type FaceRecognizer struct {
	embedder  *Embedder
	index     FaceIndex
	threshold float64
}

func NewFaceRecognizer(embedder *Embedder, index FaceIndex, threshold float64) *FaceRecognizer {
	return &FaceRecognizer{embedder: embedder, index: index, threshold: threshold}
}

func (r *FaceRecognizer) Identify(ctx context.Context, frame image.Image, det models.RawDetection) (*models.Identity, error) {
	crop := CropFace(frame, det.Box)
	if crop == nil {
		return nil, nil
	}

	embedding, err := r.embedder.Extract(crop)
	if err != nil {
		return nil, fmt.Errorf("extract embedding: %w", err)
	}

	identity, err := r.index.SearchIdentity(ctx, embedding, r.threshold)
	if err != nil {
		return nil, fmt.Errorf("search identity: %w", err)
	}
	return identity, nil
}

// Embed extracts an embedding from a standalone enrollment photo, using the
// highest-confidence face when several are present.
func (r *FaceRecognizer) Embed(det Detector, imageData []byte) ([]float32, float32, error) {
	img, err := DecodeFrame(imageData)
	if err != nil {
		return nil, 0, err
	}

	detections, err := det.Detect(img)
	if err != nil {
		return nil, 0, fmt.Errorf("detect: %w", err)
	}
	if len(detections) == 0 {
		return nil, 0, fmt.Errorf("no face detected in image")
	}

	best := detections[0]
	for _, d := range detections[1:] {
		if d.Score > best.Score {
			best = d
		}
	}

	crop := CropFace(img, best.Box)
	if crop == nil {
		return nil, 0, fmt.Errorf("face region outside frame")
	}

	embedding, err := r.embedder.Extract(crop)
	if err != nil {
		return nil, 0, fmt.Errorf("embed: %w", err)
	}

	return embedding, best.Score, nil
}

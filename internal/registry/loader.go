package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/your-org/facetrack/internal/models"
	"github.com/your-org/facetrack/internal/vision"
)

// ArtifactFetcher retrieves a custom model artifact from the blob store.
type ArtifactFetcher interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// BuiltinLoader opens the built-in RetinaFace detector shipped in modelsDir.
func BuiltinLoader(modelsDir string, threshold float64) BuiltinLoadFunc {
	return func() (vision.Detector, error) {
		path := filepath.Join(modelsDir, "det_10g.onnx")
		return vision.NewONNXDetector(path, float32(threshold))
	}
}

// CustomLoader opens an uploaded artifact: the blob is fetched from object
// storage, written to a scratch file, and handed to ONNX Runtime. Any fetch
// or parse failure surfaces as an error so the registry can fall back to the
// built-in detector.
func CustomLoader(fetcher ArtifactFetcher, threshold float64) CustomLoadFunc {
	return func(ctx context.Context, d models.ModelDescriptor) (vision.Detector, error) {
		if d.Artifact.Key == "" {
			return nil, fmt.Errorf("descriptor %d has no artifact key", d.ID)
		}

		data, err := fetcher.GetObject(ctx, d.Artifact.Key)
		if err != nil {
			return nil, fmt.Errorf("fetch artifact: %w", err)
		}

		tmp, err := os.CreateTemp("", "facetrack-model-*.onnx")
		if err != nil {
			return nil, fmt.Errorf("create scratch file: %w", err)
		}
		defer os.Remove(tmp.Name())

		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			return nil, fmt.Errorf("write scratch file: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return nil, fmt.Errorf("close scratch file: %w", err)
		}

		det, err := vision.NewONNXDetector(tmp.Name(), float32(threshold))
		if err != nil {
			return nil, fmt.Errorf("open artifact as model: %w", err)
		}
		return det, nil
	}
}

package engine

import (
	"fmt"
	"image"
	"time"

	"github.com/your-org/facetrack/internal/models"
	"github.com/your-org/facetrack/internal/observability"
	"github.com/your-org/facetrack/internal/registry"
	"github.com/your-org/facetrack/internal/vision"
)

// Pipeline turns one raw frame into raw detections using whatever model is
// currently active. "No active model" is a normal steady state, not an
// error: the pipeline yields an empty result until an admin activates a
// working model.
type Pipeline struct {
	registry *registry.Registry
}

func NewPipeline(reg *registry.Registry) *Pipeline {
	return &Pipeline{registry: reg}
}

// Process decodes the frame and runs the active detector over it. All
// per-frame buffers are scoped to this call. The decoded image is returned
// alongside the detections so the resolver can crop faces without a second
// decode.
func (p *Pipeline) Process(frame []byte) (image.Image, []models.RawDetection, error) {
	lm, ok := p.registry.ActiveModel()
	if !ok || lm.Detector == nil {
		return nil, nil, nil
	}

	img, err := vision.DecodeFrame(frame)
	if err != nil {
		return nil, nil, fmt.Errorf("decode frame: %w", err)
	}

	start := time.Now()
	detections, err := lm.Detector.Detect(img)
	if err != nil {
		return nil, nil, fmt.Errorf("detect: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
	observability.FacesDetected.Add(float64(len(detections)))

	return img, detections, nil
}

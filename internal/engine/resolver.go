package engine

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facetrack/internal/models"
	"github.com/your-org/facetrack/internal/observability"
	"github.com/your-org/facetrack/internal/vision"
)

// Resolver maps raw detections to identity-resolved detection events. A
// detection becomes a known identity only when the recognizer produced a
// match AND the detection confidence reaches the configured percentage
// threshold; in every other case the event is the unknown-person sentinel
// with no identity ID.
type Resolver struct {
	recognizer  vision.Recognizer // may be nil: every detection resolves to unknown
	threshold   int               // integer percentage
	sourceLabel string
	now         func() time.Time
}

func NewResolver(recognizer vision.Recognizer, threshold int, sourceLabel string) *Resolver {
	return &Resolver{
		recognizer:  recognizer,
		threshold:   threshold,
		sourceLabel: sourceLabel,
		now:         time.Now,
	}
}

// Resolve produces a detection event for one raw detection. Movement is left
// unset; the tracker classifies it before the event reaches the history
// store. Recognizer failures degrade to unknown rather than dropping the
// sighting.
func (r *Resolver) Resolve(ctx context.Context, frame image.Image, det models.RawDetection) models.DetectionEvent {
	box := det.Box
	ev := models.DetectionEvent{
		ID:          uuid.NewString(),
		DisplayName: models.UnknownPersonName,
		Confidence:  det.ConfidencePercent(),
		CapturedAt:  r.now(),
		SourceLabel: r.sourceLabel,
		Box:         &box,
	}

	if r.recognizer == nil {
		return ev
	}

	start := time.Now()
	identity, err := r.recognizer.Identify(ctx, frame, det)
	observability.InferenceDuration.WithLabelValues("identify").Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Warn("identity resolution failed", "error", err)
		return ev
	}

	if identity != nil && ev.Confidence >= r.threshold {
		ev.IdentityID = identity.ID
		ev.DisplayName = identity.Name
		observability.FacesRecognized.Inc()
	}
	return ev
}

package engine

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facetrack/internal/models"
)

type stubRecognizer struct {
	identity *models.Identity
	err      error
}

func (s *stubRecognizer) Identify(context.Context, image.Image, models.RawDetection) (*models.Identity, error) {
	return s.identity, s.err
}

func testFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 640, 480))
}

func testDetection(score float32) models.RawDetection {
	return models.RawDetection{
		Box:   models.BoundingBox{X: 100, Y: 80, Width: 120, Height: 140},
		Score: score,
	}
}

func TestResolverNilRecognizerYieldsUnknown(t *testing.T) {
	r := NewResolver(nil, 60, "Main Entrance")

	ev := r.Resolve(context.Background(), testFrame(), testDetection(0.87))

	assert.NotEmpty(t, ev.ID)
	assert.Empty(t, ev.IdentityID)
	assert.Equal(t, models.UnknownPersonName, ev.DisplayName)
	assert.Equal(t, 87, ev.Confidence)
	assert.Equal(t, "Main Entrance", ev.SourceLabel)
	require.NotNil(t, ev.Box)
	assert.Equal(t, 120, ev.Box.Width)
	assert.False(t, ev.Known())
}

func TestResolverMatchAboveThreshold(t *testing.T) {
	rec := &stubRecognizer{identity: &models.Identity{ID: "emp-42", Name: "Jordan Reyes", Score: 0.81}}
	r := NewResolver(rec, 60, "Main Entrance")

	ev := r.Resolve(context.Background(), testFrame(), testDetection(0.92))

	assert.Equal(t, "emp-42", ev.IdentityID)
	assert.Equal(t, "Jordan Reyes", ev.DisplayName)
	assert.Equal(t, 92, ev.Confidence)
	assert.True(t, ev.Known())
}

func TestResolverMatchBelowThresholdStaysUnknown(t *testing.T) {
	rec := &stubRecognizer{identity: &models.Identity{ID: "emp-42", Name: "Jordan Reyes"}}
	r := NewResolver(rec, 60, "Main Entrance")

	ev := r.Resolve(context.Background(), testFrame(), testDetection(0.55))

	assert.Empty(t, ev.IdentityID, "a match below the confidence threshold is still unknown")
	assert.Equal(t, models.UnknownPersonName, ev.DisplayName)
	assert.Equal(t, 55, ev.Confidence)
}

func TestResolverThresholdBoundaryIsInclusive(t *testing.T) {
	rec := &stubRecognizer{identity: &models.Identity{ID: "emp-42", Name: "Jordan Reyes"}}
	r := NewResolver(rec, 60, "Main Entrance")

	ev := r.Resolve(context.Background(), testFrame(), testDetection(0.60))
	assert.Equal(t, 60, ev.Confidence)
	assert.True(t, ev.Known(), "exactly at threshold counts as known")
}

func TestResolverRecognizerErrorDegradesToUnknown(t *testing.T) {
	rec := &stubRecognizer{err: errors.New("embedding backend down")}
	r := NewResolver(rec, 60, "Main Entrance")

	ev := r.Resolve(context.Background(), testFrame(), testDetection(0.9))

	assert.Empty(t, ev.IdentityID)
	assert.Equal(t, models.UnknownPersonName, ev.DisplayName)
	assert.Equal(t, 90, ev.Confidence, "the sighting survives as an unknown detection")
}

func TestResolverNoMatchSignal(t *testing.T) {
	r := NewResolver(&stubRecognizer{}, 60, "Main Entrance")

	ev := r.Resolve(context.Background(), testFrame(), testDetection(0.9))
	assert.False(t, ev.Known())
}

func TestResolverUsesClock(t *testing.T) {
	fixed := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	r := NewResolver(nil, 60, "Main Entrance")
	r.now = func() time.Time { return fixed }

	ev := r.Resolve(context.Background(), testFrame(), testDetection(0.7))
	assert.True(t, ev.CapturedAt.Equal(fixed))
}

func TestConfidenceRounding(t *testing.T) {
	cases := []struct {
		score float32
		want  int
	}{
		{0.0, 0},
		{0.004, 0},
		{0.006, 1},
		{0.644, 64},
		{0.646, 65},
		{0.999, 100},
		{1.0, 100},
	}
	for _, tc := range cases {
		ev := NewResolver(nil, 60, "x").Resolve(context.Background(), testFrame(), testDetection(tc.score))
		assert.Equal(t, tc.want, ev.Confidence, "score %v", tc.score)
	}
}

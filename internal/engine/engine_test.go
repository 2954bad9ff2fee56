package engine

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facetrack/internal/camera"
	"github.com/your-org/facetrack/internal/history"
	"github.com/your-org/facetrack/internal/models"
	"github.com/your-org/facetrack/internal/registry"
	"github.com/your-org/facetrack/internal/vision"
)

type stubDetector struct {
	detections []models.RawDetection
}

func (d *stubDetector) Detect(image.Image) ([]models.RawDetection, error) {
	return d.detections, nil
}

func (d *stubDetector) Close() {}

// frameSource hands out the same JPEG frame on every call.
type frameSource struct {
	mu    sync.Mutex
	frame []byte
	count int
}

func (s *frameSource) NextFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	return s.frame, nil
}

func (s *frameSource) Stop() {}

func jpegFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	data := vision.EncodeJPEG(img, 85)
	require.NotEmpty(t, data)
	return data
}

func activeRegistry(t *testing.T, det vision.Detector) *registry.Registry {
	t.Helper()
	reg := registry.New(
		func() (vision.Detector, error) { return det, nil },
		nil,
	)
	d := reg.Create("stub", "v1", models.ArtifactRef{Kind: models.ArtifactBuiltIn})
	require.NoError(t, reg.SetActive(context.Background(), d.ID))
	return reg
}

func TestPipelineNoActiveModelYieldsEmpty(t *testing.T) {
	reg := registry.New(nil, nil)
	p := NewPipeline(reg)

	img, detections, err := p.Process(jpegFrame(t))
	require.NoError(t, err, "an empty registry is a steady state, not an error")
	assert.Nil(t, img)
	assert.Empty(t, detections)
}

func TestPipelineDetects(t *testing.T) {
	det := &stubDetector{detections: []models.RawDetection{
		{Box: models.BoundingBox{X: 4, Y: 4, Width: 20, Height: 24}, Score: 0.9},
	}}
	p := NewPipeline(activeRegistry(t, det))

	img, detections, err := p.Process(jpegFrame(t))
	require.NoError(t, err)
	require.NotNil(t, img)
	require.Len(t, detections, 1)
	assert.Equal(t, 20, detections[0].Box.Width)
}

func TestPipelineRejectsGarbageFrame(t *testing.T) {
	p := NewPipeline(activeRegistry(t, &stubDetector{}))

	_, _, err := p.Process([]byte("not a jpeg"))
	assert.Error(t, err)
}

func newTestEngine(t *testing.T, det vision.Detector, hist *history.Store) (*Engine, *frameSource) {
	t.Helper()
	src := &frameSource{frame: jpegFrame(t)}
	eng := New(
		5*time.Millisecond,
		src,
		NewPipeline(activeRegistry(t, det)),
		NewResolver(nil, 60, "Main Entrance"),
		NewTracker(),
		hist,
		nil,
		nil,
	)
	return eng, src
}

func TestEngineTickAppendsEvents(t *testing.T) {
	det := &stubDetector{detections: []models.RawDetection{
		{Box: models.BoundingBox{X: 4, Y: 4, Width: 20, Height: 24}, Score: 0.8},
	}}
	hist := history.NewStore(100)
	eng, _ := newTestEngine(t, det, hist)

	eng.Start(context.Background())
	defer eng.Stop()

	require.Eventually(t, func() bool { return hist.Len() > 0 },
		time.Second, 5*time.Millisecond)

	ev := hist.Events()[0]
	assert.Equal(t, models.UnknownPersonName, ev.DisplayName)
	assert.Equal(t, 80, ev.Confidence)
	assert.Equal(t, models.MovementEntry, ev.Movement)
	assert.Equal(t, "Main Entrance", ev.SourceLabel)
}

func TestEngineStartIsIdempotent(t *testing.T) {
	hist := history.NewStore(100)
	eng, _ := newTestEngine(t, &stubDetector{}, hist)

	eng.Start(context.Background())
	eng.Start(context.Background())
	assert.True(t, eng.Running())

	eng.Stop()
	eng.Stop()
	assert.False(t, eng.Running())
}

func TestEngineStopHaltsTicks(t *testing.T) {
	hist := history.NewStore(100)
	eng, src := newTestEngine(t, &stubDetector{}, hist)

	eng.Start(context.Background())
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.count > 0
	}, time.Second, 5*time.Millisecond)

	eng.Stop()

	// Give any in-flight tick time to drain, then confirm the loop is dead.
	time.Sleep(20 * time.Millisecond)
	src.mu.Lock()
	after := src.count
	src.mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	src.mu.Lock()
	final := src.count
	src.mu.Unlock()
	assert.Equal(t, after, final)
}

func TestEngineDetectorReady(t *testing.T) {
	hist := history.NewStore(100)
	eng, _ := newTestEngine(t, &stubDetector{}, hist)
	assert.True(t, eng.DetectorReady())

	empty := New(time.Second, camera.NullSource{}, NewPipeline(registry.New(nil, nil)),
		NewResolver(nil, 60, "x"), NewTracker(), hist, nil, nil)
	assert.False(t, empty.DetectorReady())
}

func TestEngineNoFrameIsQuiet(t *testing.T) {
	hist := history.NewStore(100)
	eng := New(5*time.Millisecond, camera.NullSource{},
		NewPipeline(activeRegistry(t, &stubDetector{})),
		NewResolver(nil, 60, "x"), NewTracker(), hist, nil, nil)

	eng.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	eng.Stop()

	assert.Zero(t, hist.Len())
}

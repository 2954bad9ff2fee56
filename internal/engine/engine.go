package engine

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/facetrack/internal/camera"
	"github.com/your-org/facetrack/internal/history"
	"github.com/your-org/facetrack/internal/models"
	"github.com/your-org/facetrack/internal/observability"
	"github.com/your-org/facetrack/internal/vision"
)

// Broadcaster pushes appended events to live dashboard clients.
type Broadcaster interface {
	BroadcastEvent(ev models.DetectionEvent)
}

// SnapshotSaver stores face crops for appended events.
type SnapshotSaver interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// Engine drives the periodic detection loop: one frame per tick through
// pipeline, resolver, and tracker into the history store. All shared state
// is touched only from the single loop goroutine.
type Engine struct {
	interval    time.Duration
	source      camera.Source
	pipeline    *Pipeline
	resolver    *Resolver
	tracker     *Tracker
	history     *history.Store
	broadcaster Broadcaster   // optional
	snapshots   SnapshotSaver // optional

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

func New(
	interval time.Duration,
	source camera.Source,
	pipeline *Pipeline,
	resolver *Resolver,
	tracker *Tracker,
	hist *history.Store,
	broadcaster Broadcaster,
	snapshots SnapshotSaver,
) *Engine {
	if interval <= 0 {
		interval = 1500 * time.Millisecond
	}
	return &Engine{
		interval:    interval,
		source:      source,
		pipeline:    pipeline,
		resolver:    resolver,
		tracker:     tracker,
		history:     hist,
		broadcaster: broadcaster,
		snapshots:   snapshots,
	}
}

// Start launches the tick loop. Calling Start on a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true

	go e.run(loopCtx)
	slog.Info("detection engine started", "interval", e.interval)
}

// Stop halts the ticker immediately. An in-flight tick finishes its
// inference but discards the result before any tracker or history mutation.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}
	e.cancel()
	e.running = false
	slog.Info("detection engine stopped")
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// DetectorReady reports whether an active model with a working runtime
// handle exists. An empty detection stream with DetectorReady false means
// "recognition unavailable" rather than "no one in frame".
func (e *Engine) DetectorReady() bool {
	_, ok := e.pipeline.registry.ActiveModel()
	return ok
}

// Tracker exposes the movement tracker for status queries and seeding.
func (e *Engine) Tracker() *Tracker {
	return e.tracker
}

func (e *Engine) run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick processes exactly one frame. Events are resolved and appended one at
// a time, in detection order; no new frame is pulled until this one is done.
func (e *Engine) tick(ctx context.Context) {
	frame, err := e.source.NextFrame(ctx)
	if err != nil {
		if err == camera.ErrNoFrame || ctx.Err() != nil {
			return
		}
		slog.Warn("frame acquisition failed, skipping tick", "error", err)
		return
	}
	observability.FramesProcessed.Inc()

	img, detections, err := e.pipeline.Process(frame)
	if err != nil {
		slog.Warn("frame processing failed, skipping tick", "error", err)
		return
	}

	for _, det := range detections {
		ev := e.resolver.Resolve(ctx, img, det)

		// A stop requested mid-tick discards the remaining results without
		// touching tracker or history state.
		if ctx.Err() != nil {
			return
		}

		e.tracker.Classify(&ev)
		e.history.Append(ev)

		if e.broadcaster != nil {
			e.broadcaster.BroadcastEvent(ev)
		}
		if e.snapshots != nil && ev.Box != nil {
			e.saveSnapshot(ev, img)
		}
	}
}

// saveSnapshot stores the face crop asynchronously; a failed write only
// costs the thumbnail.
func (e *Engine) saveSnapshot(ev models.DetectionEvent, img image.Image) {
	crop := vision.CropFace(img, *ev.Box)
	if crop == nil {
		return
	}
	data := vision.EncodeJPEG(crop, 85)
	key := "snapshots/" + ev.ID + ".jpg"

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.snapshots.PutObject(ctx, key, data, "image/jpeg"); err != nil {
			slog.Warn("save snapshot", "event_id", ev.ID, "error", err)
		}
	}()
}

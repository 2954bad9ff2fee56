package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/your-org/facetrack/internal/models"
	"github.com/your-org/facetrack/internal/observability"
	"github.com/your-org/facetrack/internal/vision"
)

// LoadedModel is the runtime handle for a descriptor. At most one instance
// exists per descriptor ID; every use goes through the registry's cache.
type LoadedModel struct {
	DescriptorID int64
	Detector     vision.Detector
	// Fallback is set when the descriptor's custom artifact failed to load
	// and the built-in detector was substituted.
	Fallback bool
}

// CustomLoadFunc opens a descriptor's custom artifact as a detector.
// BuiltinLoadFunc opens the built-in default detector.
type (
	CustomLoadFunc  func(ctx context.Context, d models.ModelDescriptor) (vision.Detector, error)
	BuiltinLoadFunc func() (vision.Detector, error)
)

// Registry owns the model descriptors and the loaded-model cache. It is the
// only component allowed to mutate the active-model pointer; all access is
// serialized behind its lock.
type Registry struct {
	mu          sync.Mutex
	descriptors map[int64]*models.ModelDescriptor
	cache       map[int64]*LoadedModel
	nextID      int64
	activeID    int64 // 0 means no active model

	loadCustom  CustomLoadFunc
	loadBuiltin BuiltinLoadFunc
}

func New(loadBuiltin BuiltinLoadFunc, loadCustom CustomLoadFunc) *Registry {
	return &Registry{
		descriptors: make(map[int64]*models.ModelDescriptor),
		cache:       make(map[int64]*LoadedModel),
		loadBuiltin: loadBuiltin,
		loadCustom:  loadCustom,
	}
}

// Create registers a new descriptor with status inactive.
func (r *Registry) Create(name, version string, artifact models.ArtifactRef) models.ModelDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	d := &models.ModelDescriptor{
		ID:         r.nextID,
		Name:       name,
		Version:    version,
		Status:     models.ModelStatusInactive,
		Accuracy:   "pending",
		UploadedAt: time.Now(),
		Artifact:   artifact,
	}
	r.descriptors[d.ID] = d
	return *d
}

// List returns all descriptors ordered by ID.
func (r *Registry) List() []models.ModelDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.ModelDescriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a descriptor by ID.
func (r *Registry) Get(id int64) (models.ModelDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.descriptors[id]
	if !ok {
		return models.ModelDescriptor{}, false
	}
	return *d, true
}

// SetAccuracy records the deferred accuracy value computed after upload.
func (r *Registry) SetAccuracy(id int64, accuracy string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.descriptors[id]; ok {
		d.Accuracy = accuracy
	}
}

// Delete removes a descriptor. The cache entry for its ID is deliberately
// left in place; the leak is bounded by the number of descriptors ever
// created and the entry is reused if the ID is activated again before the
// process restarts.
func (r *Registry) Delete(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.descriptors[id]; !ok {
		return fmt.Errorf("model %d not found", id)
	}
	delete(r.descriptors, id)
	if r.activeID == id {
		r.activeID = 0
	}
	return nil
}

// SetActive marks the descriptor active, deactivates all others, and loads
// it. A load failure does not fail the call: the active pointer still moves,
// the runtime handle stays absent, and detection is a no-op until a working
// model is activated.
func (r *Registry) SetActive(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.descriptors[id]
	if !ok {
		return fmt.Errorf("model %d not found", id)
	}

	for _, other := range r.descriptors {
		other.Status = models.ModelStatusInactive
	}
	d.Status = models.ModelStatusActive
	r.activeID = id

	if _, err := r.loadLocked(ctx, *d); err != nil {
		slog.Warn("model load failed, detection disabled until a working model is active",
			"model_id", id, "name", d.Name, "error", err)
		observability.ModelLoads.WithLabelValues("failed").Inc()
	}
	return nil
}

// Load resolves a descriptor to its runtime handle, reusing the cache entry
// when present.
func (r *Registry) Load(ctx context.Context, id int64) (*LoadedModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.descriptors[id]
	if !ok {
		return nil, fmt.Errorf("model %d not found", id)
	}
	return r.loadLocked(ctx, *d)
}

func (r *Registry) loadLocked(ctx context.Context, d models.ModelDescriptor) (*LoadedModel, error) {
	if lm, ok := r.cache[d.ID]; ok {
		observability.ModelLoads.WithLabelValues("cached").Inc()
		return lm, nil
	}

	lm := &LoadedModel{DescriptorID: d.ID}

	if d.Artifact.Kind == models.ArtifactCustom && r.loadCustom != nil {
		det, err := r.loadCustom(ctx, d)
		if err == nil {
			lm.Detector = det
			observability.ModelLoads.WithLabelValues("custom").Inc()
			r.cache[d.ID] = lm
			slog.Info("loaded custom model", "model_id", d.ID, "name", d.Name, "version", d.Version)
			return lm, nil
		}
		slog.Warn("custom model load failed, falling back to built-in detector",
			"model_id", d.ID, "name", d.Name, "error", err)
		lm.Fallback = true
		observability.ModelLoads.WithLabelValues("fallback").Inc()
	}

	det, err := r.loadBuiltin()
	if err != nil {
		return nil, fmt.Errorf("load built-in detector: %w", err)
	}
	lm.Detector = det
	if !lm.Fallback {
		observability.ModelLoads.WithLabelValues("builtin").Inc()
	}
	r.cache[d.ID] = lm
	slog.Info("loaded built-in detector", "model_id", d.ID, "fallback", lm.Fallback)
	return lm, nil
}

// ActiveModel returns the loaded handle for the active descriptor, or false
// when no model is active or its load failed.
func (r *Registry) ActiveModel() (*LoadedModel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeID == 0 {
		return nil, false
	}
	lm, ok := r.cache[r.activeID]
	return lm, ok
}

// ActiveDescriptor returns the active descriptor, if any.
func (r *Registry) ActiveDescriptor() (models.ModelDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeID == 0 {
		return models.ModelDescriptor{}, false
	}
	d, ok := r.descriptors[r.activeID]
	if !ok {
		return models.ModelDescriptor{}, false
	}
	return *d, true
}

// Close releases every cached detector.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, lm := range r.cache {
		if lm.Detector != nil {
			lm.Detector.Close()
		}
		delete(r.cache, id)
	}
	r.activeID = 0
}

package ml

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ModelSnapshot is a fitted model together with its serving metadata.
type ModelSnapshot struct {
	Version     uuid.UUID
	Model       *LatentFactorModel
	FittedAt    time.Time
	FitDuration time.Duration
}

// ModelInfo is the metadata of a published model, kept after it is replaced.
type ModelInfo struct {
	Version     uuid.UUID     `json:"version"`
	FittedAt    time.Time     `json:"fitted_at"`
	FitDuration time.Duration `json:"fit_duration"`
	Summary     FitSummary    `json:"summary"`
}

// ModelRegistry serves the current model and swaps it atomically on re-fit.
// Readers never observe a partially replaced model.
type ModelRegistry struct {
	current atomic.Pointer[ModelSnapshot]

	mutex      sync.RWMutex
	history    []ModelInfo
	maxHistory int
}

// NewModelRegistry creates an empty (unfit) registry remembering up to maxHistory published models.
func NewModelRegistry(maxHistory int) *ModelRegistry {
	if maxHistory <= 0 {
		maxHistory = 10
	}
	return &ModelRegistry{maxHistory: maxHistory}
}

// Publish replaces the served model and returns its snapshot.
func (r *ModelRegistry) Publish(model *LatentFactorModel, fitDuration time.Duration) *ModelSnapshot {
	snapshot := &ModelSnapshot{
		Version:     uuid.New(),
		Model:       model,
		FittedAt:    time.Now(),
		FitDuration: fitDuration,
	}

	r.mutex.Lock()
	r.history = append(r.history, ModelInfo{
		Version:     snapshot.Version,
		FittedAt:    snapshot.FittedAt,
		FitDuration: fitDuration,
		Summary:     model.Summary(),
	})
	if len(r.history) > r.maxHistory {
		r.history = r.history[len(r.history)-r.maxHistory:]
	}
	r.current.Store(snapshot)
	r.mutex.Unlock()

	return snapshot
}

// Current returns the served snapshot, or ErrModelNotFitted.
func (r *ModelRegistry) Current() (*ModelSnapshot, error) {
	snapshot := r.current.Load()
	if snapshot == nil {
		return nil, ErrModelNotFitted
	}
	return snapshot, nil
}

// History returns published model metadata, oldest first.
func (r *ModelRegistry) History() []ModelInfo {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]ModelInfo, len(r.history))
	copy(out, r.history)
	return out
}

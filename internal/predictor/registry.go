package predictor

import (
	"sync"
	"sync/atomic"
)

type State string

const (
	StateUntrained State = "untrained"
	StateTrained   State = "trained"
	StateServing   State = "serving"
)

// Registry owns the serving artifact. Readers load the pointer without
// locking; Promote serialises replacements.
type Registry struct {
	current atomic.Pointer[Artifact]
	staged  atomic.Pointer[Artifact]
	mu      sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Current returns the serving artifact, or nil.
func (r *Registry) Current() *Artifact {
	return r.current.Load()
}

// Stage records a trained artifact that is not serving yet.
func (r *Registry) Stage(a *Artifact) {
	r.staged.Store(a)
}

// Promote validates a and swaps it in. On error the serving artifact is unchanged.
func (r *Registry) Promote(a *Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur := r.current.Load(); cur != nil && a.TrainedAt.Before(cur.TrainedAt) {
		return ErrStaleArtifact
	}
	r.current.Store(a)
	r.staged.CompareAndSwap(a, nil)
	return nil
}

func (r *Registry) State() State {
	if r.current.Load() != nil {
		return StateServing
	}
	if r.staged.Load() != nil {
		return StateTrained
	}
	return StateUntrained
}

// Predict scores against one consistent snapshot and returns it alongside the value.
func (r *Registry) Predict(features map[string]float64) (float64, *Artifact, error) {
	a := r.current.Load()
	if a == nil {
		return 0, nil, ErrNoModel
	}
	v, err := Predict(features, a)
	return v, a, err
}

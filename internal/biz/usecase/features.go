package usecase

import (
	"sync"

	"github.com/DevRickLin/chatguard/internal/biz/domain"
)

// FeatureRegistry holds the on/off state of every policy.
// The key set is fixed at construction; unknown names never mutate it.
type FeatureRegistry struct {
	mu     sync.RWMutex
	states map[domain.Feature]bool
}

// NewFeatureRegistry creates a registry with every feature disabled
func NewFeatureRegistry() *FeatureRegistry {
	states := make(map[domain.Feature]bool, len(domain.AllFeatures))
	for _, f := range domain.AllFeatures {
		states[f] = false
	}
	return &FeatureRegistry{states: states}
}

// Enable turns a feature on. It returns false for unknown names.
func (r *FeatureRegistry) Enable(name string) bool {
	return r.set(name, true)
}

// Disable turns a feature off. It returns false for unknown names.
func (r *FeatureRegistry) Disable(name string) bool {
	return r.set(name, false)
}

func (r *FeatureRegistry) set(name string, on bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := domain.Feature(name)
	if _, ok := r.states[f]; !ok {
		return false
	}
	r.states[f] = on
	return true
}

// Toggle flips a feature and returns its new state
func (r *FeatureRegistry) Toggle(name string) (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := domain.Feature(name)
	cur, ok := r.states[f]
	if !ok {
		return false, false
	}
	r.states[f] = !cur
	return !cur, true
}

// Status returns the state of one feature
func (r *FeatureRegistry) Status(name string) (bool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	on, ok := r.states[domain.Feature(name)]
	return on, ok
}

// Enabled reports whether f is on
func (r *FeatureRegistry) Enabled(f domain.Feature) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.states[f]
}

// AllStatuses returns a snapshot of every feature state
func (r *FeatureRegistry) AllStatuses() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(r.states))
	for f, on := range r.states {
		out[string(f)] = on
	}
	return out
}

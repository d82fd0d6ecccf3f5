package agent

import (
	"sync"

	"github.com/harrison/ensemble/internal/runner"
)

// Override replaces parts of a provider's Spec from configuration.
// Empty strings and nil pointers keep the defaults; a pointer to 0 is a real 0.
type Override struct {
	Path   string
	Model  string
	Weight *float64
	Trust  *float64
}

// Registry resolves providers to concrete invocations.
// Thread-safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	overrides map[Provider]Override
}

// NewRegistry creates a Registry with built-in defaults.
func NewRegistry() *Registry {
	return &Registry{overrides: make(map[Provider]Override)}
}

// Set installs an override for a provider.
func (r *Registry) Set(p Provider, o Override) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[p] = o
}

func (r *Registry) override(p Provider) Override {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.overrides[p]
}

// Binary returns the executable for a provider.
func (r *Registry) Binary(p Provider) string {
	if o := r.override(p); o.Path != "" {
		return o.Path
	}
	return p.Spec().Binary
}

// Model resolves the model: explicit argument, then override, then default.
func (r *Registry) Model(p Provider, model string) string {
	if model != "" {
		return model
	}
	if o := r.override(p); o.Model != "" {
		return o.Model
	}
	return p.Spec().DefaultModel
}

// Trust returns the confidence seed for a provider.
func (r *Registry) Trust(p Provider) float64 {
	if o := r.override(p); o.Trust != nil {
		return *o.Trust
	}
	return p.Spec().BaseTrust
}

// VoteWeight returns the default weighted-strategy weight for a provider.
func (r *Registry) VoteWeight(p Provider) float64 {
	if o := r.override(p); o.Weight != nil {
		return *o.Weight
	}
	return p.Spec().VoteWeight
}

// Command builds the invocation skeleton for running prompt on a provider.
// Callers fill in Dir, Timeout and the callbacks.
func (r *Registry) Command(p Provider, model string, mode OutputMode, prompt string) runner.Invocation {
	return runner.Invocation{
		Command: r.Binary(p),
		Args:    buildArgs(p, r.Model(p, model), mode),
		Env:     providerEnv(p),
		Input:   prompt,
	}
}

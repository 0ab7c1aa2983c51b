// Package domain contains the core business entities and value objects.
package domain

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNoProviders is returned when dispatch is attempted with an empty
// registry.
var ErrNoProviders = errors.New("no providers registered")

// DuplicateProviderError is returned by RegisterStrict when a provider name
// is already taken.
type DuplicateProviderError struct {
	Name string
}

func (e *DuplicateProviderError) Error() string {
	return fmt.Sprintf("provider %q is already registered", e.Name)
}

// OrderPolicy selects how candidate ordering is produced.
type OrderPolicy string

const (
	// PolicyPriority orders candidates by static priority alone.
	PolicyPriority OrderPolicy = "priority"

	// PolicyHealthAware orders by priority but excludes providers that
	// are inside a health cool-down window.
	PolicyHealthAware OrderPolicy = "health-aware"
)

// IsValid reports whether the policy is a known variant.
func (p OrderPolicy) IsValid() bool {
	return p == PolicyPriority || p == PolicyHealthAware
}

// Registry stores ProviderConfig entries and produces candidate orderings
// for dispatch attempts. It performs no network I/O: pure state plus
// ordering logic. Entries are added during startup and read-only shared
// afterwards; the health tracker holds the only mutable state consulted
// here.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*ProviderConfig
	names     []string // registration order, for stable ties
	health    *HealthTracker
}

// NewRegistry creates an empty registry backed by the given health tracker.
// A nil tracker makes PolicyHealthAware behave like PolicyPriority.
func NewRegistry(health *HealthTracker) *Registry {
	return &Registry{
		providers: make(map[string]*ProviderConfig),
		health:    health,
	}
}

// Register adds or replaces a provider keyed by name. Later registrations
// win, which makes duplicate declarations in configuration intentional
// overwrite rather than an accident.
func (r *Registry) Register(cfg ProviderConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[cfg.Name]; !exists {
		r.names = append(r.names, cfg.Name)
	}
	r.providers[cfg.Name] = &cfg
}

// RegisterStrict adds a provider and fails with DuplicateProviderError if
// the name is already taken.
func (r *Registry) RegisterStrict(cfg ProviderConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[cfg.Name]; exists {
		return &DuplicateProviderError{Name: cfg.Name}
	}
	r.names = append(r.names, cfg.Name)
	r.providers[cfg.Name] = &cfg
	return nil
}

// Get returns the provider with the given name.
func (r *Registry) Get(name string) (*ProviderConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	return p, ok
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Names returns all registered provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// CandidateOrder returns the provider names to try for one dispatch
// attempt, best candidate first. Disabled providers are always excluded;
// PolicyHealthAware additionally drops providers inside a cool-down
// window. Ordering is by ascending Priority, with registration order
// breaking ties.
func (r *Registry) CandidateOrder(policy OrderPolicy) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := make([]string, 0, len(r.names))
	for _, name := range r.names {
		p := r.providers[name]
		if !p.Enabled {
			continue
		}
		if policy == PolicyHealthAware && r.health != nil && !r.health.Available(name) {
			continue
		}
		candidates = append(candidates, name)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return r.providers[candidates[i]].Priority < r.providers[candidates[j]].Priority
	})

	return candidates
}

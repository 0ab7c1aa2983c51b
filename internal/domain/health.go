// Package domain contains the core business entities and value objects.
package domain

import (
	"sync"
	"time"
)

const (
	// DefaultFailureThreshold is the number of consecutive failures after
	// which a provider enters cool-down.
	DefaultFailureThreshold = 3

	// maxCooldownMultiplier caps the exponential cool-down growth at 10x
	// the base window.
	maxCooldownMultiplier = 10
)

// HealthTracker records per-provider success/failure signals and derives a
// cool-down window for providers that keep failing. This implements the
// Circuit Breaker pattern: after threshold consecutive failures a provider
// is excluded from candidate ordering until its cool-down expires; each
// further failure doubles the window, capped at 10x the base.
//
// Thread-safe: reads take a read lock only and never block on long
// operations; writes are short map updates.
type HealthTracker struct {
	mu        sync.RWMutex
	states    map[string]*healthState
	threshold int
	cooldown  time.Duration

	// now is swappable for tests.
	now func() time.Time
}

type healthState struct {
	consecutiveFailures int
	coolingUntil        time.Time
}

// NewHealthTracker creates a tracker with the given failure threshold and
// base cool-down window. A threshold <= 0 falls back to the default; a
// cooldown of 0 disables cool-down entirely (failures are counted but
// providers stay eligible).
func NewHealthTracker(threshold int, cooldown time.Duration) *HealthTracker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &HealthTracker{
		states:    make(map[string]*healthState),
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// RecordSuccess resets the provider's failure count and clears any
// cool-down.
func (t *HealthTracker) RecordSuccess(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, name)
}

// RecordFailure increments the provider's consecutive failure count. Once
// the count reaches the threshold, a cool-down window is set; the window
// doubles with each further failure up to the cap.
func (t *HealthTracker) RecordFailure(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[name]
	if !ok {
		s = &healthState{}
		t.states[name] = s
	}
	s.consecutiveFailures++

	if t.cooldown == 0 || s.consecutiveFailures < t.threshold {
		return
	}

	// 1x at the threshold, doubling per extra failure, capped.
	multiplier := 1 << uint(s.consecutiveFailures-t.threshold)
	if multiplier > maxCooldownMultiplier {
		multiplier = maxCooldownMultiplier
	}
	s.coolingUntil = t.now().Add(t.cooldown * time.Duration(multiplier))
}

// Available reports whether the provider is currently eligible for
// dispatch (not inside a cool-down window). Unknown providers are
// available.
func (t *HealthTracker) Available(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.states[name]
	if !ok {
		return true
	}
	return s.coolingUntil.IsZero() || t.now().After(s.coolingUntil)
}

// CoolingUntil returns the provider's cool-down deadline, if one is set and
// still in the future.
func (t *HealthTracker) CoolingUntil(name string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.states[name]
	if !ok || s.coolingUntil.IsZero() || t.now().After(s.coolingUntil) {
		return time.Time{}, false
	}
	return s.coolingUntil, true
}

// ConsecutiveFailures returns the provider's current failure streak.
func (t *HealthTracker) ConsecutiveFailures(name string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if s, ok := t.states[name]; ok {
		return s.consecutiveFailures
	}
	return 0
}

// CoolingCount returns how many providers are currently inside a cool-down
// window.
func (t *HealthTracker) CoolingCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	now := t.now()
	for _, s := range t.states {
		if !s.coolingUntil.IsZero() && now.Before(s.coolingUntil) {
			n++
		}
	}
	return n
}

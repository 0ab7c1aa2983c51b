// Package probe periodically checks provider availability in the background.
package probe

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Sol-I/stark-ai/internal/dispatch"
	"github.com/Sol-I/stark-ai/internal/domain"
	"github.com/Sol-I/stark-ai/internal/ui"
)

// AvailabilityReporter receives the result of each probe sweep. The metrics
// package implements it.
type AvailabilityReporter interface {
	SetAvailability(provider string, available bool)
}

// Checker probes every registered provider on a cron schedule and keeps the
// health tracker and availability gauge current even when live traffic is
// idle.
type Checker struct {
	dispatcher *dispatch.Dispatcher
	registry   *domain.Registry
	health     *domain.HealthTracker
	reporter   AvailabilityReporter
	logger     *slog.Logger
	schedule   string
	cron       *cron.Cron

	// wasAvailable tracks the previous sweep's state per provider so
	// transitions are announced once, not every run.
	wasAvailable map[string]bool
}

// NewChecker creates a checker. reporter may be nil.
func NewChecker(
	d *dispatch.Dispatcher,
	registry *domain.Registry,
	health *domain.HealthTracker,
	reporter AvailabilityReporter,
	schedule string,
	logger *slog.Logger,
) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		dispatcher:   d,
		registry:     registry,
		health:       health,
		reporter:     reporter,
		logger:       logger,
		schedule:     schedule,
		wasAvailable: make(map[string]bool),
	}
}

// Start registers the cron job and begins scheduling. It returns an error
// for an unparsable schedule.
func (c *Checker) Start(ctx context.Context) error {
	c.cron = cron.New()
	_, err := c.cron.AddFunc(c.schedule, func() {
		c.runSweep(ctx)
	})
	if err != nil {
		return err
	}
	c.cron.Start()
	c.logger.Info("availability probe started", "schedule", c.schedule)
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (c *Checker) Stop() {
	if c.cron == nil {
		return
	}
	stopCtx := c.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(10 * time.Second):
		c.logger.Warn("probe sweep did not finish before shutdown deadline")
	}
}

// runSweep probes every registered provider once, including those currently
// cooling down, so recovery is detected without live traffic.
func (c *Checker) runSweep(ctx context.Context) {
	for _, name := range c.registry.Names() {
		p, ok := c.registry.Get(name)
		if !ok || !p.Enabled {
			continue
		}

		err := c.dispatcher.Probe(ctx, name)
		available := c.health.Available(name)
		if c.reporter != nil {
			c.reporter.SetAvailability(name, available)
		}
		c.announceTransition(name, available)

		if err != nil {
			c.logger.Warn("probe failed",
				"provider", name,
				"available", available,
				"error", err,
			)
			continue
		}
		c.logger.Debug("probe succeeded", "provider", name)
	}
}

// announceTransition prints a console line when a provider's availability
// flips. runSweep is single-flight under cron, so no locking is needed.
func (c *Checker) announceTransition(name string, available bool) {
	was, seen := c.wasAvailable[name]
	c.wasAvailable[name] = available

	if !seen || was == available {
		return
	}
	if available {
		ui.PrintRecovered(name)
		return
	}
	if until, ok := c.health.CoolingUntil(name); ok {
		ui.PrintCooling(name, until)
	}
}

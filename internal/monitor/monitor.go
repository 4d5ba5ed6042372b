// Package monitor runs periodic reconciliation of environment state.
package monitor

import (
	"context"
	"time"

	"github.com/gwsandbox/gwsandbox-ctl/internal/logging"
	"github.com/gwsandbox/gwsandbox-ctl/internal/orchestrator"
)

// Reconciler is the part of the orchestrator the monitor drives.
type Reconciler interface {
	Reconcile(ctx context.Context, opts orchestrator.ReconcileOptions) []orchestrator.ReconcileResult
}

// Monitor periodically reconciles all environments.
type Monitor struct {
	interval time.Duration
	target   Reconciler
	report   func([]orchestrator.ReconcileResult)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithReport sets a callback invoked with the results of every pass.
func WithReport(fn func([]orchestrator.ReconcileResult)) Option {
	return func(m *Monitor) {
		m.report = fn
	}
}

// New creates a new Monitor.
func New(interval time.Duration, target Reconciler, opts ...Option) *Monitor {
	m := &Monitor{
		interval: interval,
		target:   target,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run starts the reconciliation loop. It blocks until the context is
// cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	logging.Debug("starting reconcile monitor", "interval", m.interval)

	// Run an immediate pass, then loop on interval.
	m.pass(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Debug("reconcile monitor stopping")
			return ctx.Err()
		case <-ticker.C:
			m.pass(ctx)
		}
	}
}

func (m *Monitor) pass(ctx context.Context) []orchestrator.ReconcileResult {
	results := m.target.Reconcile(ctx, orchestrator.ReconcileOptions{})

	changed := 0
	for _, r := range results {
		if r.Changed() {
			changed++
		}
	}
	if changed > 0 {
		logging.Info("reconcile pass repaired environments", "changed", changed, "checked", len(results))
	}
	if m.report != nil {
		m.report(results)
	}
	return results
}

package orchestrator

import (
	"context"

	"github.com/gwsandbox/gwsandbox-ctl/internal/audit"
	"github.com/gwsandbox/gwsandbox-ctl/internal/logging"
	"github.com/gwsandbox/gwsandbox-ctl/internal/registry"
	"github.com/gwsandbox/gwsandbox-ctl/internal/runtime"
)

// ReconcileOptions controls Reconcile.
type ReconcileOptions struct {
	// All checks every record regardless of when it was last touched.
	All bool
}

// ReconcileResult describes what reconciliation did to one environment.
type ReconcileResult struct {
	ID       string          `json:"id"`
	From     registry.Status `json:"from"`
	To       registry.Status `json:"to"`
	Observed runtime.Status  `json:"observed,omitempty"`
	Skipped  string          `json:"skipped,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Changed reports whether the record's status was modified.
func (r ReconcileResult) Changed() bool {
	return r.From != r.To
}

// Messages written to lastError by reconciliation.
const (
	msgWorkloadGone       = "workload is no longer running"
	msgInterruptedStart   = "start was interrupted and the workload is not running"
	msgInterruptedStop    = "stop was interrupted and the workload is still running"
	skipRecent            = "recently updated"
	skipBusy              = "busy"
	skipRuntimeStatusFail = "runtime status unavailable"
)

// Reconcile compares records against the runtime's live status and repairs
// drift. Records updated within the configured stale window are skipped
// unless opts.All is set, as are records whose lock is held.
func (o *Orchestrator) Reconcile(ctx context.Context, opts ReconcileOptions) []ReconcileResult {
	began := o.now()
	staleAfter := o.cfg.Reconcile.StaleAfter.Duration

	var results []ReconcileResult
	for _, rec := range o.registry.List() {
		if ctx.Err() != nil {
			break
		}
		result := ReconcileResult{ID: rec.ID, From: rec.Status, To: rec.Status}
		if !opts.All && began.Sub(rec.UpdatedAt) < staleAfter {
			result.Skipped = skipRecent
			results = append(results, result)
			continue
		}
		results = append(results, o.reconcileOne(ctx, rec.ID, result))
	}

	o.observe("reconcile", began, nil)
	return results
}

func (o *Orchestrator) reconcileOne(ctx context.Context, id string, result ReconcileResult) ReconcileResult {
	unlock, ok := o.locks.tryLock(id)
	if !ok {
		result.Skipped = skipBusy
		return result
	}
	defer unlock()

	rec, err := o.registry.Get(id)
	if err != nil {
		result.Skipped = err.Error()
		return result
	}
	result.From, result.To = rec.Status, rec.Status

	status, err := o.driver.Status(ctx, handleOf(rec))
	if err != nil {
		logging.Warn("reconcile could not query runtime", "id", id, "error", err)
		result.Skipped = skipRuntimeStatusFail
		result.Error = err.Error()
		return result
	}
	result.Observed = status

	next, lastError := decide(rec.Status, status)
	at := o.now().UTC()

	obs := registry.Observation{RuntimeStatus: string(status), At: at}

	// Only a status change counts as an update for the stale window.
	var updated *registry.Record
	if next == rec.Status {
		updated, err = o.registry.Observe(id, obs)
	} else {
		updated, err = o.registry.Update(id, func(r *registry.Record) error {
			r.Observed = &obs
			r.Status = next
			switch next {
			case registry.StatusRunning:
				r.LastStartedAt = &at
				r.LastError = ""
			case registry.StatusStopped:
				r.LastStoppedAt = &at
				r.LastError = ""
			case registry.StatusError:
				r.LastError = lastError
			}
			return nil
		})
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.To = updated.Status
	if result.Changed() {
		logging.Info("reconciled environment", "id", id, "from", result.From, "to", result.To, "observed", status)
		o.record(audit.EventReconcile, id, string(result.From), string(result.To), lastError)
		o.refreshGauge()
	}
	return result
}

// decide returns the status a record should move to given the runtime's
// status. Unknown runtime status never changes a record.
func decide(current registry.Status, observed runtime.Status) (registry.Status, string) {
	if observed == runtime.StatusUnknown {
		return current, ""
	}
	live := observed == runtime.StatusRunning

	switch current {
	case registry.StatusStarting:
		if live {
			return registry.StatusRunning, ""
		}
		return registry.StatusError, msgInterruptedStart
	case registry.StatusStopping:
		if !live {
			return registry.StatusStopped, ""
		}
		return registry.StatusError, msgInterruptedStop
	case registry.StatusRunning:
		if !live {
			return registry.StatusError, msgWorkloadGone
		}
	}
	// stopped while live is drift, surfaced through Observed only.
	return current, ""
}

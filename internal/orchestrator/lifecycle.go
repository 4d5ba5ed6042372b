package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/gwsandbox/gwsandbox-ctl/internal/audit"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
	"github.com/gwsandbox/gwsandbox-ctl/internal/health"
	"github.com/gwsandbox/gwsandbox-ctl/internal/logging"
	"github.com/gwsandbox/gwsandbox-ctl/internal/registry"
	"github.com/gwsandbox/gwsandbox-ctl/internal/runtime"
)

// ReadyFunc reports nil once a started environment is ready.
type ReadyFunc func(ctx context.Context, v View) error

// StartOptions controls Start.
type StartOptions struct {
	// Wait blocks until Ready passes or Timeout elapses.
	Wait bool
	// Timeout bounds the wait. Zero uses the configured start wait.
	Timeout time.Duration
	// Ready overrides the default check, which requires the workload to be
	// running and the gateway to report RUNNING.
	Ready ReadyFunc
}

var (
	startableFrom = map[registry.Status]bool{
		registry.StatusCreated: true,
		registry.StatusStopped: true,
		registry.StatusError:   true,
	}
	stoppableFrom = map[registry.Status]bool{
		registry.StatusRunning: true,
		registry.StatusError:   true,
	}
	deletableFrom = map[registry.Status]bool{
		registry.StatusCreated: true,
		registry.StatusStopped: true,
		registry.StatusError:   true,
	}
)

// Start launches the environment's workload. Without Wait it returns once
// the runtime has accepted the project; with Wait it blocks until ready or
// the timeout elapses. Failures leave the environment in error with
// lastError set.
//
// Runtime calls and status writes are not cancelled with ctx; the driver's
// call timeout bounds them. If ctx ends during the readiness wait the
// environment is recorded as running, as it would be without Wait, and
// ctx's error is returned.
func (o *Orchestrator) Start(ctx context.Context, id string, opts StartOptions) (view View, err error) {
	began := o.now()
	defer func() { o.observe("start", began, err) }()

	rec, unlock, err := o.acquire(id)
	if err != nil {
		return View{}, err
	}
	defer unlock()

	if !startableFrom[rec.Status] {
		return View{}, errors.InvalidTransition(id, "start", string(rec.Status))
	}

	rec, err = o.transition(id, audit.EventStart, registry.StatusStarting, "", func(r *registry.Record) {
		r.LastError = ""
	})
	if err != nil {
		return View{}, err
	}

	work := context.WithoutCancel(ctx)
	h, err := o.driver.Up(work, handleOf(rec).Project)
	if err != nil {
		return o.fail(id, err)
	}

	var abandoned error

	if opts.Wait {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = o.cfg.Timeouts.StartWait.Duration
		}
		ready := opts.Ready
		if ready == nil {
			ready = o.defaultReady(h)
		}
		v := viewOf(rec)
		err := health.WaitFor(ctx, "start", timeout, func(ctx context.Context) error {
			return ready(ctx, v)
		})
		switch {
		case err == nil:
		case ctx.Err() != nil:
			abandoned = ctx.Err()
			logging.Debug("start wait abandoned by caller", "id", id, "error", abandoned)
		default:
			return o.fail(id, err)
		}
	}

	startedAt := o.now().UTC()
	rec, err = o.transition(id, audit.EventRunning, registry.StatusRunning, "", func(r *registry.Record) {
		r.LastStartedAt = &startedAt
		r.LastError = ""
	})
	if err != nil {
		return View{}, err
	}
	logging.Info("environment started", "id", id, "url", viewOf(rec).GatewayURL, "waited", opts.Wait && abandoned == nil)
	return viewOf(rec), abandoned
}

func (o *Orchestrator) defaultReady(h runtime.Handle) ReadyFunc {
	return func(ctx context.Context, v View) error {
		status, err := o.driver.Status(ctx, h)
		if err != nil {
			return err
		}
		if status != runtime.StatusRunning {
			return fmt.Errorf("workload status is %s", status)
		}
		return o.prober.Check(ctx, v.Ports.HTTP)
	}
}

// Stop stops the environment's workload and waits, bounded by the
// configured stop timeout, for the runtime to confirm it is no longer
// running. If confirmation does not arrive the environment moves to error.
// Once begun, a stop runs to completion even if ctx ends.
func (o *Orchestrator) Stop(ctx context.Context, id string) (view View, err error) {
	began := o.now()
	defer func() { o.observe("stop", began, err) }()

	rec, unlock, err := o.acquire(id)
	if err != nil {
		return View{}, err
	}
	defer unlock()

	if !stoppableFrom[rec.Status] {
		return View{}, errors.InvalidTransition(id, "stop", string(rec.Status))
	}

	rec, err = o.transition(id, audit.EventStop, registry.StatusStopping, "", nil)
	if err != nil {
		return View{}, err
	}

	work := context.WithoutCancel(ctx)
	h := handleOf(rec)
	if err := o.driver.Down(work, h, runtime.DownOptions{}); err != nil {
		return o.fail(id, err)
	}
	if err := health.WaitFor(work, "stop", o.cfg.Timeouts.Stop.Duration, func(ctx context.Context) error {
		status, err := o.driver.Status(ctx, h)
		if err != nil {
			return err
		}
		if status == runtime.StatusRunning {
			return fmt.Errorf("workload still running")
		}
		return nil
	}); err != nil {
		return o.fail(id, err)
	}

	stoppedAt := o.now().UTC()
	rec, err = o.transition(id, audit.EventStopped, registry.StatusStopped, "", func(r *registry.Record) {
		r.LastStoppedAt = &stoppedAt
		r.LastError = ""
	})
	if err != nil {
		return View{}, err
	}
	logging.Info("environment stopped", "id", id)
	return viewOf(rec), nil
}

// Delete tears down the environment's runtime resources including volumes,
// removes its artifacts and then its record. A running environment must be
// stopped first. If teardown fails the record is kept with lastError set.
func (o *Orchestrator) Delete(ctx context.Context, id string) (view View, err error) {
	began := o.now()
	defer func() { o.observe("delete", began, err) }()

	rec, unlock, err := o.acquire(id)
	if err != nil {
		return View{}, err
	}
	defer unlock()

	if !deletableFrom[rec.Status] {
		return View{}, errors.InvalidTransition(id, "delete", string(rec.Status))
	}

	// A never-started environment has nothing to tear down at the runtime.
	if rec.Status != registry.StatusCreated {
		if err := o.driver.Down(context.WithoutCancel(ctx), handleOf(rec), runtime.DownOptions{Volumes: true}); err != nil {
			return o.keepWithError(id, fmt.Errorf("teardown failed: %w", err))
		}
	}
	if err := o.writer.Remove(id); err != nil {
		return o.keepWithError(id, fmt.Errorf("artifact removal failed: %w", err))
	}
	if err := o.registry.Delete(id); err != nil {
		return View{}, err
	}

	if o.auditLog != nil {
		if err := o.auditLog.Remove(id); err != nil {
			logging.Warn("failed to remove audit log", "id", id, "error", err)
		}
	}
	o.locks.forget(id)
	o.refreshGauge()
	logging.Info("environment deleted", "id", id, "name", rec.Name)

	v := viewOf(rec)
	v.Status = registry.StatusDeleted
	return v, nil
}

// keepWithError records cause on the record without changing its status.
func (o *Orchestrator) keepWithError(id string, cause error) (View, error) {
	rec, err := o.registry.Update(id, func(r *registry.Record) error {
		r.LastError = cause.Error()
		return nil
	})
	if err != nil {
		return View{}, cause
	}
	o.record(audit.EventError, id, string(rec.Status), string(rec.Status), cause.Error())
	logging.Warn("environment delete failed", "id", id, "error", cause)
	return viewOf(rec), cause
}

package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gwsandbox/gwsandbox-ctl/internal/artifact"
	"github.com/gwsandbox/gwsandbox-ctl/internal/audit"
	"github.com/gwsandbox/gwsandbox-ctl/internal/config"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
	"github.com/gwsandbox/gwsandbox-ctl/internal/health"
	"github.com/gwsandbox/gwsandbox-ctl/internal/logging"
	"github.com/gwsandbox/gwsandbox-ctl/internal/logstream"
	"github.com/gwsandbox/gwsandbox-ctl/internal/metrics"
	"github.com/gwsandbox/gwsandbox-ctl/internal/paths"
	"github.com/gwsandbox/gwsandbox-ctl/internal/port"
	"github.com/gwsandbox/gwsandbox-ctl/internal/registry"
	"github.com/gwsandbox/gwsandbox-ctl/internal/runtime"
)

// Orchestrator drives environments through their lifecycle.
type Orchestrator struct {
	cfg      *config.Config
	registry *registry.Registry
	driver   runtime.Driver
	resolver *paths.Resolver
	writer   *artifact.Writer
	ports    *port.Allocator
	locks    *lockSet
	logs     *logstream.Broadcaster

	auditLog *audit.Logger
	metrics  *metrics.Metrics
	prober   *health.Prober
	now      func() time.Time
	newID    func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAuditLogger records lifecycle events to logger.
func WithAuditLogger(logger *audit.Logger) Option {
	return func(o *Orchestrator) {
		o.auditLog = logger
	}
}

// WithMetrics records operation metrics to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithProber overrides the gateway readiness prober.
func WithProber(p *health.Prober) Option {
	return func(o *Orchestrator) {
		o.prober = p
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithIDGenerator overrides environment id generation.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) {
		o.newID = gen
	}
}

// New creates an orchestrator over reg and driver.
func New(cfg *config.Config, reg *registry.Registry, driver runtime.Driver, opts ...Option) *Orchestrator {
	p := config.NewPaths(cfg)
	o := &Orchestrator{
		cfg:      cfg,
		registry: reg,
		driver:   driver,
		resolver: paths.NewResolver(p.EnvironmentsRoot),
		writer:   artifact.NewWriter(p.ArtifactsDir),
		ports:    port.NewAllocator(cfg.Ports),
		locks:    newLockSet(p.LocksDir),
		prober:   health.NewProber(),
		now:      time.Now,
		newID:    newID,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.logs = logstream.New(logstream.DefaultBuffer)
	o.logs.OnDrop = o.metrics.LogLineDropped
	o.refreshGauge()
	return o
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Driver returns the runtime driver in use.
func (o *Orchestrator) Driver() runtime.Driver {
	return o.driver
}

// Get returns the environment with id.
func (o *Orchestrator) Get(ctx context.Context, id string) (View, error) {
	rec, err := o.registry.Get(id)
	if err != nil {
		return View{}, err
	}
	return viewOf(rec), nil
}

// List returns all environments, oldest first.
func (o *Orchestrator) List(ctx context.Context) []View {
	recs := o.registry.List()
	out := make([]View, 0, len(recs))
	for _, rec := range recs {
		out = append(out, viewOf(rec))
	}
	return out
}

// Events returns the audit trail of an environment.
func (o *Orchestrator) Events(ctx context.Context, id string) ([]audit.Event, error) {
	if _, err := o.registry.Get(id); err != nil {
		return nil, err
	}
	if o.auditLog == nil {
		return nil, nil
	}
	return o.auditLog.Events(id)
}

// Close ends all log streams.
func (o *Orchestrator) Close() {
	o.logs.Close()
}

// acquire takes the lock for id and loads its record. It fails with Busy if
// the lock is held or the record is mid-transition.
func (o *Orchestrator) acquire(id string) (*registry.Record, func(), error) {
	unlock, ok := o.locks.tryLock(id)
	if !ok {
		return nil, nil, errors.Busy(id)
	}
	rec, err := o.registry.Get(id)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	if rec.Status.Transitional() {
		unlock()
		return nil, nil, errors.Busy(id)
	}
	return rec, unlock, nil
}

// transition persists a status change and records it.
func (o *Orchestrator) transition(id string, event audit.EventType, to registry.Status, details string, mutate func(*registry.Record)) (*registry.Record, error) {
	var from registry.Status
	rec, err := o.registry.Update(id, func(r *registry.Record) error {
		from = r.Status
		r.Status = to
		if mutate != nil {
			mutate(r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.Debug("environment transition", "id", id, "from", from, "to", to)
	o.record(event, id, string(from), string(to), details)
	o.refreshGauge()
	return rec, nil
}

// fail moves id to error with cause as lastError and returns cause.
func (o *Orchestrator) fail(id string, cause error) (View, error) {
	rec, err := o.transition(id, audit.EventError, registry.StatusError, cause.Error(), func(r *registry.Record) {
		r.LastError = cause.Error()
	})
	if err != nil {
		logging.Error("failed to record environment error", "id", id, "error", err, "cause", cause)
		return View{}, cause
	}
	logging.Warn("environment operation failed", "id", id, "error", cause)
	return viewOf(rec), cause
}

func (o *Orchestrator) record(event audit.EventType, id, from, to, details string) {
	if o.auditLog == nil {
		return
	}
	if err := o.auditLog.LogTransition(event, id, from, to, details); err != nil {
		logging.Warn("failed to write audit event", "id", id, "event", event, "error", err)
	}
}

func (o *Orchestrator) observe(op string, began time.Time, err error) {
	o.metrics.ObserveOperation(op, err, o.now().Sub(began))
}

func (o *Orchestrator) refreshGauge() {
	if o.metrics == nil {
		return
	}
	statuses := make([]string, 0, len(registry.AllStatuses))
	for _, s := range registry.AllStatuses {
		statuses = append(statuses, string(s))
	}
	counts := make(map[string]int)
	for s, n := range o.registry.Count() {
		counts[string(s)] = n
	}
	o.metrics.SetEnvironments(statuses, counts)
}

func handleOf(rec *registry.Record) runtime.Handle {
	return runtime.HandleFor(runtime.Project{
		Name:     config.ProjectName(rec.ID),
		Manifest: rec.Artifacts.Manifest,
		Dir:      rec.Artifacts.Dir,
	})
}

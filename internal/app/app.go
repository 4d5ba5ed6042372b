// Package app wires the controller's components from a configuration.
// It allows dependency injection for testing.
package app

import (
	"fmt"

	"github.com/gwsandbox/gwsandbox-ctl/internal/audit"
	"github.com/gwsandbox/gwsandbox-ctl/internal/config"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
	"github.com/gwsandbox/gwsandbox-ctl/internal/logging"
	"github.com/gwsandbox/gwsandbox-ctl/internal/metrics"
	"github.com/gwsandbox/gwsandbox-ctl/internal/orchestrator"
	"github.com/gwsandbox/gwsandbox-ctl/internal/registry"
	"github.com/gwsandbox/gwsandbox-ctl/internal/runtime"
	"github.com/gwsandbox/gwsandbox-ctl/internal/system"
)

// App holds the application dependencies
type App struct {
	// Config is the loaded controller configuration
	Config *config.Config

	// Paths holds the state layout derived from Config
	Paths *config.Paths

	// Driver is the container runtime driver
	Driver runtime.Driver

	// Registry holds the environment records
	Registry *registry.Registry

	// Audit records lifecycle events per environment
	Audit *audit.Logger

	// Metrics is the controller's Prometheus registry
	Metrics *metrics.Metrics

	// Orchestrator drives the environment lifecycle
	Orchestrator *orchestrator.Orchestrator

	orchestratorOpts []orchestrator.Option
	executor         system.CommandExecutor
}

// Option is a function that configures the App
type Option func(*App)

// WithDriver sets a custom runtime driver
func WithDriver(d runtime.Driver) Option {
	return func(a *App) {
		a.Driver = d
	}
}

// WithExecutor sets the command executor used to build the default driver
func WithExecutor(e system.CommandExecutor) Option {
	return func(a *App) {
		a.executor = e
	}
}

// WithMetrics sets a custom metrics registry
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *App) {
		a.Metrics = m
	}
}

// WithOrchestratorOptions passes extra options to the orchestrator
func WithOrchestratorOptions(opts ...orchestrator.Option) Option {
	return func(a *App) {
		a.orchestratorOpts = append(a.orchestratorOpts, opts...)
	}
}

// New creates a new App from cfg with the given options.
// If no driver is provided via WithDriver, one is built from cfg.Runtime.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.ConfigError("configuration is required", nil)
	}

	a := &App{
		Config: cfg,
		Paths:  config.NewPaths(cfg),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.Driver == nil {
		exec := a.executor
		if exec == nil {
			exec = system.DefaultExecutor()
		}
		driver, err := runtime.New(cfg.Runtime, cfg.Timeouts, exec)
		if err != nil {
			return nil, err
		}
		a.Driver = driver
	}
	if a.Metrics == nil {
		a.Metrics = metrics.New()
	}

	reg, err := registry.Open(a.Paths.RegistryDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	a.Registry = reg
	a.Audit = audit.NewLogger(a.Paths.AuditDir)

	orchOpts := []orchestrator.Option{
		orchestrator.WithAuditLogger(a.Audit),
		orchestrator.WithMetrics(a.Metrics),
	}
	a.Orchestrator = orchestrator.New(cfg, reg, a.Driver, append(orchOpts, a.orchestratorOpts...)...)

	logging.Debug("application initialized", "state", a.Paths.StateDir, "runtime", a.Driver.Name(),
		"environments", len(reg.List()))
	return a, nil
}

// Close releases resources held by the App.
func (a *App) Close() {
	if a.Orchestrator != nil {
		a.Orchestrator.Close()
	}
}

// Default is the application instance used by the CLI. It is set once the
// configuration has been loaded.
var Default *App

// SetDefault sets the default application instance
func SetDefault(app *App) {
	Default = app
}

// ResetDefault clears the default application instance
func ResetDefault() {
	if Default != nil {
		Default.Close()
	}
	Default = nil
}

// Package app wires the controller's components from a configuration.
//
// The App struct holds the registry, the runtime driver, the audit log,
// metrics and the orchestrator built on top of them. Commands and the HTTP
// transport share one App per process.
//
// Production usage builds the driver from the configured runtime:
//
//	a, err := app.New(cfg)
//
// Tests inject a mock driver:
//
//	a, err := app.New(cfg, app.WithDriver(runtime.NewMockDriver()))
package app

// Package testutil provides test utilities for orchestrator and transport tests
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gwsandbox/gwsandbox-ctl/internal/app"
	"github.com/gwsandbox/gwsandbox-ctl/internal/config"
	"github.com/gwsandbox/gwsandbox-ctl/internal/orchestrator"
	"github.com/gwsandbox/gwsandbox-ctl/internal/runtime"
)

// TestEnv holds the test environment
type TestEnv struct {
	T       *testing.T
	TmpDir  string
	Config  *config.Config
	Paths   *config.Paths
	Driver  *runtime.MockDriver
	App     *app.App
	Orch    *orchestrator.Orchestrator
	cleanup func()
}

// EnvOption adjusts the test environment before the App is built.
type EnvOption func(*envSettings)

type envSettings struct {
	configure []func(*config.Config)
	orchOpts  []orchestrator.Option
}

// WithConfig mutates the test configuration.
func WithConfig(fn func(*config.Config)) EnvOption {
	return func(s *envSettings) {
		s.configure = append(s.configure, fn)
	}
}

// WithOrchestratorOptions passes options to the orchestrator.
func WithOrchestratorOptions(opts ...orchestrator.Option) EnvOption {
	return func(s *envSettings) {
		s.orchOpts = append(s.orchOpts, opts...)
	}
}

// NewTestEnv creates a new test environment with a mock driver and short
// timeouts. The App is installed as app.Default until the test ends.
func NewTestEnv(t *testing.T, opts ...EnvOption) *TestEnv {
	t.Helper()

	var settings envSettings
	for _, opt := range opts {
		opt(&settings)
	}

	tmpDir := t.TempDir()

	cfg := config.Default()
	cfg.StateDir = filepath.Join(tmpDir, "state")
	cfg.EnvironmentsRoot = filepath.Join(tmpDir, "envs")
	cfg.Timeouts.StartWait = config.Duration{Duration: 2 * time.Second}
	cfg.Timeouts.Stop = config.Duration{Duration: time.Second}
	cfg.Timeouts.RuntimeCall = config.Duration{Duration: 5 * time.Second}
	for _, fn := range settings.configure {
		fn(cfg)
	}

	if err := os.MkdirAll(cfg.EnvironmentsRoot, 0755); err != nil {
		t.Fatalf("Failed to create environments root: %v", err)
	}

	mockDriver := runtime.NewMockDriver()

	testApp, err := app.New(cfg,
		app.WithDriver(mockDriver),
		app.WithOrchestratorOptions(settings.orchOpts...),
	)
	if err != nil {
		t.Fatalf("Failed to build app: %v", err)
	}

	// Save original default and set test app
	originalDefault := app.Default
	app.SetDefault(testApp)

	env := &TestEnv{
		T:      t,
		TmpDir: tmpDir,
		Config: cfg,
		Paths:  testApp.Paths,
		Driver: mockDriver,
		App:    testApp,
		Orch:   testApp.Orchestrator,
		cleanup: func() {
			testApp.Close()
			app.SetDefault(originalDefault)
		},
	}
	t.Cleanup(env.Cleanup)

	return env
}

// Cleanup restores the original app default. It is safe to call twice.
func (e *TestEnv) Cleanup() {
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
}

// Path returns the host path of rel under the environments root.
func (e *TestEnv) Path(rel string) string {
	return filepath.Join(e.Config.EnvironmentsRoot, rel)
}

// AddFile writes content to rel under the environments root.
func (e *TestEnv) AddFile(rel, content string) string {
	e.T.Helper()

	path := e.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		e.T.Fatalf("Failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		e.T.Fatalf("Failed to write %s: %v", rel, err)
	}
	return path
}

// AddProject creates a gateway project directory with a project.json.
func (e *TestEnv) AddProject(rel string) string {
	e.T.Helper()

	name := filepath.Base(rel)
	e.AddFile(filepath.Join(rel, "project.json"), `{"title":"`+name+`","enabled":true}`)
	return e.Path(rel)
}

// AddModule drops a module file into the default modules directory.
func (e *TestEnv) AddModule(name string) string {
	e.T.Helper()
	return e.AddFile(filepath.Join("modules", name+".modl"), "module")
}

// AddSecret writes a secret into the default secrets directory.
func (e *TestEnv) AddSecret(name, value string) string {
	e.T.Helper()
	return e.AddFile(filepath.Join("secrets", name), value)
}

// AddBackup writes a placeholder gateway backup.
func (e *TestEnv) AddBackup(rel string) string {
	e.T.Helper()
	return e.AddFile(rel, "gwbk")
}

// ProjectName returns the runtime project name for an environment id.
func (e *TestEnv) ProjectName(id string) string {
	return config.ProjectName(id)
}

// Ready is a readiness check that always passes.
func Ready(ctx context.Context, v orchestrator.View) error {
	return nil
}

// CreateRunning creates an environment from a minimal definition and
// starts it without waiting.
func (e *TestEnv) CreateRunning(name string) orchestrator.View {
	e.T.Helper()

	ctx := context.Background()
	v, err := e.Orch.Create(ctx, MinimalDefinition(name))
	if err != nil {
		e.T.Fatalf("Create(%s) error: %v", name, err)
	}
	v, err = e.Orch.Start(ctx, v.ID, orchestrator.StartOptions{})
	if err != nil {
		e.T.Fatalf("Start(%s) error: %v", name, err)
	}
	return v
}

package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gwsandbox/gwsandbox-ctl/internal/app"
	"github.com/gwsandbox/gwsandbox-ctl/internal/config"
	"github.com/gwsandbox/gwsandbox-ctl/internal/definition"
	"github.com/gwsandbox/gwsandbox-ctl/internal/orchestrator"
	"github.com/gwsandbox/gwsandbox-ctl/internal/registry"
	"github.com/gwsandbox/gwsandbox-ctl/internal/runtime"
)

// Environment variables read by the harness.
const (
	EnvEnable = "GWSANDBOX_INTEGRATION_TESTS"
	EnvImage  = "GWSANDBOX_TEST_IMAGE"
)

// DefaultStartTimeout bounds a first start, which may include an image pull.
const DefaultStartTimeout = 10 * time.Minute

// TestHarness provides utilities for integration testing with a real runtime.
type TestHarness struct {
	t       *testing.T
	tempDir string
	config  *config.Config
	app     *app.App
	created []string
}

// Enabled reports whether integration tests were requested.
func Enabled() bool {
	return os.Getenv(EnvEnable) == "1"
}

// NewHarness creates a new test harness.
// It will skip the test if integration tests are disabled or no runtime is
// reachable.
func NewHarness(t *testing.T) *TestHarness {
	t.Helper()

	if !Enabled() {
		t.Skipf("integration tests disabled (set %s=1 to enable)", EnvEnable)
	}

	tempDir := t.TempDir()
	cfg := config.Default()
	cfg.StateDir = filepath.Join(tempDir, "state")
	cfg.EnvironmentsRoot = filepath.Join(tempDir, "envs")
	cfg.Timeouts.StartWait = config.Duration{Duration: DefaultStartTimeout}
	if image := os.Getenv(EnvImage); image != "" {
		repo, tag, _ := strings.Cut(image, ":")
		cfg.Defaults.ImageRepository = repo
		if tag != "" {
			cfg.Defaults.ImageTag = tag
		}
	}

	if err := os.MkdirAll(cfg.EnvironmentsRoot, 0755); err != nil {
		t.Fatalf("Failed to create environments root: %v", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		t.Skipf("no container runtime available: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Driver.Ping(ctx); err != nil {
		a.Close()
		t.Skipf("container runtime not reachable: %v", err)
	}

	h := &TestHarness{
		t:       t,
		tempDir: tempDir,
		config:  cfg,
		app:     a,
	}
	t.Cleanup(h.Cleanup)

	return h
}

// App returns the application under test.
func (h *TestHarness) App() *app.App {
	return h.app
}

// Orchestrator returns the orchestrator under test.
func (h *TestHarness) Orchestrator() *orchestrator.Orchestrator {
	return h.app.Orchestrator
}

// AddProject creates a minimal gateway project under the environments root.
func (h *TestHarness) AddProject(rel string) {
	h.t.Helper()

	dir := filepath.Join(h.config.EnvironmentsRoot, rel)
	if err := os.MkdirAll(dir, 0755); err != nil {
		h.t.Fatalf("Failed to create project: %v", err)
	}
	content := `{"title":"` + filepath.Base(rel) + `","enabled":true,"inheritable":false}`
	if err := os.WriteFile(filepath.Join(dir, "project.json"), []byte(content), 0644); err != nil {
		h.t.Fatalf("Failed to write project.json: %v", err)
	}
}

// Create creates an environment and tracks it for cleanup.
func (h *TestHarness) Create(def definition.Definition) orchestrator.View {
	h.t.Helper()

	v, err := h.app.Orchestrator.Create(context.Background(), def)
	if err != nil {
		h.t.Fatalf("Create(%s) error: %v", def.Name, err)
	}
	h.created = append(h.created, v.ID)
	return v
}

// Cleanup stops and deletes every tracked environment.
func (h *TestHarness) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	o := h.app.Orchestrator
	for _, id := range h.created {
		v, err := o.Get(ctx, id)
		if err != nil {
			continue
		}
		if v.Status == registry.StatusRunning || v.Status == registry.StatusError {
			if _, err := o.Stop(ctx, id); err != nil {
				h.t.Logf("Warning: failed to stop %s: %v", v.Name, err)
			}
		}
		if _, err := o.Delete(ctx, id); err != nil {
			h.t.Logf("Warning: failed to delete %s: %v", v.Name, err)
		}
	}
	h.app.Close()
}

// CleanDefinition returns a clean-mode definition for one project.
func CleanDefinition(name, project string) definition.Definition {
	return definition.Definition{
		Name:     name,
		Mode:     definition.ModeClean,
		Projects: []string{project},
		Gateway: definition.Gateway{
			Timezone: "UTC",
		},
	}
}

// HandleFor rebuilds the runtime handle of an environment so tests can
// drive the runtime directly.
func HandleFor(v orchestrator.View) runtime.Handle {
	return runtime.HandleFor(runtime.Project{
		Name:     config.ProjectName(v.ID),
		Manifest: v.Artifacts.Manifest,
		Dir:      v.Artifacts.Dir,
	})
}

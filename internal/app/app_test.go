package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwsandbox/gwsandbox-ctl/internal/config"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
	"github.com/gwsandbox/gwsandbox-ctl/internal/metrics"
	"github.com/gwsandbox/gwsandbox-ctl/internal/runtime"
	"github.com/gwsandbox/gwsandbox-ctl/internal/system"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.StateDir = filepath.Join(dir, "state")
	cfg.EnvironmentsRoot = filepath.Join(dir, "envs")
	return cfg
}

func TestNew_WithDriver(t *testing.T) {
	mock := runtime.NewMockDriver()

	a, err := New(testConfig(t), WithDriver(mock))
	require.NoError(t, err)
	defer a.Close()

	assert.Same(t, mock, a.Driver)
	assert.NotNil(t, a.Registry)
	assert.NotNil(t, a.Audit)
	assert.NotNil(t, a.Metrics)
	require.NotNil(t, a.Orchestrator)
	assert.Same(t, mock, a.Orchestrator.Driver())
	assert.DirExists(t, a.Paths.RegistryDir)
}

func TestNew_WithMetrics(t *testing.T) {
	m := metrics.New()

	a, err := New(testConfig(t), WithDriver(runtime.NewMockDriver()), WithMetrics(m))
	require.NoError(t, err)
	defer a.Close()

	assert.Same(t, m, a.Metrics)
}

func TestNew_BuildsDriverFromConfig(t *testing.T) {
	exec := system.NewMockExecutor()
	exec.AddPath("docker", "/usr/bin/docker")

	cfg := testConfig(t)
	cfg.Runtime.Command = "docker"

	a, err := New(cfg, WithExecutor(exec))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "docker", a.Driver.Name())
}

func TestNew_NoRuntime(t *testing.T) {
	cfg := testConfig(t)

	_, err := New(cfg, WithExecutor(system.NewMockExecutor()))
	assert.True(t, errors.Is(err, errors.ErrRuntimeUnavailable), "got %v", err)
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(nil)
	assert.True(t, errors.Is(err, errors.ErrConfigError), "got %v", err)
}

func TestSetDefault(t *testing.T) {
	a, err := New(testConfig(t), WithDriver(runtime.NewMockDriver()))
	require.NoError(t, err)

	SetDefault(a)
	assert.Same(t, a, Default)

	ResetDefault()
	assert.Nil(t, Default)
}

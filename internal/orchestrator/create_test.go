package orchestrator_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwsandbox/gwsandbox-ctl/internal/config"
	"github.com/gwsandbox/gwsandbox-ctl/internal/definition"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
	"github.com/gwsandbox/gwsandbox-ctl/internal/registry"
	"github.com/gwsandbox/gwsandbox-ctl/internal/testutil"
)

func TestCreate_Clean(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.AddProject("projects/line-a")
	env.AddModule("perspective")

	def, err := testutil.CleanDefinition()
	require.NoError(t, err)

	v, err := env.Orch.Create(context.Background(), *def)
	require.NoError(t, err)

	assert.NoError(t, config.ValidateID(v.ID))
	assert.Equal(t, "line-a", v.Name)
	assert.Equal(t, registry.StatusCreated, v.Status)
	assert.Nil(t, v.LastStartedAt)
	assert.True(t, env.Config.Ports.HTTP.Contains(v.Ports.HTTP), "http port %d", v.Ports.HTTP)
	assert.True(t, env.Config.Ports.HTTPS.Contains(v.Ports.HTTPS), "https port %d", v.Ports.HTTPS)
	assert.Equal(t, fmt.Sprintf("http://127.0.0.1:%d", v.Ports.HTTP), v.GatewayURL)

	assert.Equal(t, []string{"projects/line-a"}, v.Summary.Projects)
	assert.Equal(t, []string{"perspective.modl"}, v.Summary.Modules)
	assert.Equal(t, "clean", v.Summary.Mode)
	assert.Equal(t, "inductiveautomation/ignition:8.1", v.Summary.Image)

	assert.FileExists(t, v.Artifacts.Manifest)
	assert.FileExists(t, v.Artifacts.EnvFile)
	manifest, err := os.ReadFile(v.Artifacts.Manifest)
	require.NoError(t, err)
	assert.Contains(t, string(manifest), env.Path("projects/line-a"))

	// Nothing was started.
	assert.Empty(t, env.Driver.GetCalls())

	events, err := env.Orch.Events(context.Background(), v.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "created", events[0].To)
}

func TestCreate_RestoreKeepsSecretsOutOfArtifacts(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.AddBackup("backups/plant.gwbk")
	env.AddFile("tags/plant-tags.json", `{"tags":[]}`)
	env.AddSecret("activation-token", "token-value-123")

	def, err := testutil.RestoreDefinition()
	require.NoError(t, err)
	password := def.Gateway.AdminPassword

	v, err := env.Orch.Create(context.Background(), *def)
	require.NoError(t, err)

	assert.Equal(t, "backups/plant.gwbk", v.Summary.Backup)
	assert.Equal(t, "data/plant-restore", v.Summary.DataSource)
	assert.ElementsMatch(t, []string{"activation-token", "gateway-admin-password"}, v.Summary.Secrets)
	assert.DirExists(t, env.Path("data/plant-restore"))

	record, err := os.ReadFile(filepath.Join(env.Paths.RegistryDir, v.ID+".json"))
	require.NoError(t, err)
	manifest, err := os.ReadFile(v.Artifacts.Manifest)
	require.NoError(t, err)
	envFile, err := os.ReadFile(v.Artifacts.EnvFile)
	require.NoError(t, err)

	for name, data := range map[string][]byte{"record": record, "manifest": manifest, "env file": envFile} {
		assert.NotContains(t, string(data), password, "%s leaks the admin password", name)
		assert.NotContains(t, string(data), "token-value-123", "%s leaks the activation token", name)
	}
}

func TestCreate_InvalidDefinition(t *testing.T) {
	env := testutil.NewTestEnv(t)

	def, err := testutil.InvalidDefinition()
	require.NoError(t, err)

	_, err = env.Orch.Create(context.Background(), *def)
	assert.True(t, errors.Is(err, errors.ErrInvalidDefinition), "got %v", err)
	assert.Empty(t, env.Orch.List(context.Background()))
}

func TestCreate_RestoreWithoutBackup(t *testing.T) {
	env := testutil.NewTestEnv(t)

	def := testutil.MinimalDefinition("no-backup")
	def.Mode = definition.ModeRestore

	_, err := env.Orch.Create(context.Background(), def)
	assert.True(t, errors.Is(err, errors.ErrRenderError), "got %v", err)
}

func TestCreate_PathEscape(t *testing.T) {
	env := testutil.NewTestEnv(t)

	def := testutil.MinimalDefinition("escape")
	def.Projects = []string{"../escape"}

	_, err := env.Orch.Create(context.Background(), def)
	assert.True(t, errors.Is(err, errors.ErrInvalidPath), "got %v", err)
	assert.Empty(t, env.Orch.List(context.Background()))
	assert.NoDirExists(t, filepath.Join(env.TmpDir, "escape"))
}

func TestCreate_RollsBackOnRenderFailure(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.AddProject("site-a/shared")
	env.AddProject("site-b/shared")

	def := testutil.MinimalDefinition("rollback")
	def.Gateway.AdminPassword = "rollback-password"
	def.Projects = []string{"site-a/shared", "site-b/shared"}

	_, err := env.Orch.Create(context.Background(), def)
	assert.True(t, errors.Is(err, errors.ErrRenderError), "got %v", err)

	assert.Empty(t, env.Orch.List(context.Background()))
	entries, err := os.ReadDir(env.Paths.ArtifactsDir)
	if err == nil {
		assert.Empty(t, entries, "artifact directories left behind")
	}
}

func TestCreate_ExplicitPortConflict(t *testing.T) {
	env := testutil.NewTestEnv(t)

	first := testutil.MinimalDefinition("first")
	first.Gateway.HTTPPort = 9088
	_, err := env.Orch.Create(context.Background(), first)
	require.NoError(t, err)

	second := testutil.MinimalDefinition("second")
	second.Gateway.HTTPPort = 9088
	_, err = env.Orch.Create(context.Background(), second)
	assert.True(t, errors.Is(err, errors.ErrInvalidDefinition), "got %v", err)
}

func TestCreate_ConcurrentPortsUnique(t *testing.T) {
	env := testutil.NewTestEnv(t)

	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.Orch.Create(context.Background(), testutil.MinimalDefinition(fmt.Sprintf("env%d", i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	seen := make(map[int]string)
	for _, v := range env.Orch.List(context.Background()) {
		for _, p := range []int{v.Ports.HTTP, v.Ports.HTTPS} {
			if other, dup := seen[p]; dup {
				t.Errorf("port %d assigned to both %s and %s", p, other, v.Name)
			}
			seen[p] = v.Name
		}
	}
	assert.Len(t, seen, 2*n)
}

func TestCreate_CanceledContext(t *testing.T) {
	env := testutil.NewTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.Orch.Create(ctx, testutil.MinimalDefinition("canceled"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetAndList(t *testing.T) {
	env := testutil.NewTestEnv(t)

	_, err := env.Orch.Get(context.Background(), strings.Repeat("a", 32))
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)

	a, err := env.Orch.Create(context.Background(), testutil.MinimalDefinition("alpha"))
	require.NoError(t, err)
	b, err := env.Orch.Create(context.Background(), testutil.MinimalDefinition("beta"))
	require.NoError(t, err)

	got, err := env.Orch.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Name)

	list := env.Orch.List(context.Background())
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
}

package orchestrator_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwsandbox/gwsandbox-ctl/internal/orchestrator"
	"github.com/gwsandbox/gwsandbox-ctl/internal/registry"
	"github.com/gwsandbox/gwsandbox-ctl/internal/runtime"
	"github.com/gwsandbox/gwsandbox-ctl/internal/testutil"
)

func forceStatus(t *testing.T, env *testutil.TestEnv, id string, s registry.Status) {
	t.Helper()
	_, err := env.App.Registry.Update(id, func(r *registry.Record) error {
		r.Status = s
		return nil
	})
	require.NoError(t, err)
}

func resultFor(t *testing.T, results []orchestrator.ReconcileResult, id string) orchestrator.ReconcileResult {
	t.Helper()
	for _, r := range results {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("no reconcile result for %s", id)
	return orchestrator.ReconcileResult{}
}

func TestReconcile_RunningWorkloadGone(t *testing.T) {
	env := testutil.NewTestEnv(t)
	v := env.CreateRunning("crashed")
	env.Driver.SetStatus(env.ProjectName(v.ID), runtime.StatusExited)

	results := env.Orch.Reconcile(context.Background(), orchestrator.ReconcileOptions{All: true})
	r := resultFor(t, results, v.ID)
	assert.True(t, r.Changed())
	assert.Equal(t, registry.StatusError, r.To)

	got, err := env.Orch.Get(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusError, got.Status)
	assert.Contains(t, got.LastError, "no longer running")
	require.NotNil(t, got.Observed)
	assert.Equal(t, string(runtime.StatusExited), got.Observed.RuntimeStatus)
}

func TestReconcile_InterruptedTransitions(t *testing.T) {
	env := testutil.NewTestEnv(t)

	startingLive := env.CreateRunning("starting-live")
	forceStatus(t, env, startingLive.ID, registry.StatusStarting)

	startingDead := create(t, env, "starting-dead")
	forceStatus(t, env, startingDead.ID, registry.StatusStarting)

	stoppingDone := env.CreateRunning("stopping-done")
	forceStatus(t, env, stoppingDone.ID, registry.StatusStopping)
	env.Driver.SetStatus(env.ProjectName(stoppingDone.ID), runtime.StatusExited)

	stoppingLive := env.CreateRunning("stopping-live")
	forceStatus(t, env, stoppingLive.ID, registry.StatusStopping)

	results := env.Orch.Reconcile(context.Background(), orchestrator.ReconcileOptions{All: true})

	tests := []struct {
		id   string
		want registry.Status
	}{
		{startingLive.ID, registry.StatusRunning},
		{startingDead.ID, registry.StatusError},
		{stoppingDone.ID, registry.StatusStopped},
		{stoppingLive.ID, registry.StatusError},
	}
	for _, tt := range tests {
		r := resultFor(t, results, tt.id)
		assert.Equal(t, tt.want, r.To, "environment %s", tt.id)

		got, err := env.Orch.Get(context.Background(), tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Status)
	}

	// Nothing is left in a transitional state.
	for _, v := range env.Orch.List(context.Background()) {
		assert.False(t, v.Status.Transitional(), "%s is %s", v.Name, v.Status)
	}
}

func TestReconcile_StoppedButLiveIsReported(t *testing.T) {
	env := testutil.NewTestEnv(t)
	v := env.CreateRunning("drift")
	_, err := env.Orch.Stop(context.Background(), v.ID)
	require.NoError(t, err)
	env.Driver.SetStatus(env.ProjectName(v.ID), runtime.StatusRunning)

	r := resultFor(t, env.Orch.Reconcile(context.Background(), orchestrator.ReconcileOptions{All: true}), v.ID)
	assert.False(t, r.Changed())
	assert.Equal(t, runtime.StatusRunning, r.Observed)

	got, err := env.Orch.Get(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusStopped, got.Status)
	require.NotNil(t, got.Observed)
	assert.Equal(t, "running", got.Observed.RuntimeStatus)
}

func TestReconcile_UnknownStatusChangesNothing(t *testing.T) {
	env := testutil.NewTestEnv(t)
	v := env.CreateRunning("unknown")
	env.Driver.SetStatus(env.ProjectName(v.ID), runtime.StatusUnknown)

	r := resultFor(t, env.Orch.Reconcile(context.Background(), orchestrator.ReconcileOptions{All: true}), v.ID)
	assert.False(t, r.Changed())

	got, err := env.Orch.Get(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusRunning, got.Status)
}

func TestReconcile_RuntimeErrorSkips(t *testing.T) {
	env := testutil.NewTestEnv(t)
	v := env.CreateRunning("unreachable")
	env.Driver.SetError("Status", fmt.Errorf("engine unreachable"))

	r := resultFor(t, env.Orch.Reconcile(context.Background(), orchestrator.ReconcileOptions{All: true}), v.ID)
	assert.NotEmpty(t, r.Skipped)
	assert.Contains(t, r.Error, "engine unreachable")

	got, err := env.Orch.Get(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusRunning, got.Status)
}

func TestReconcile_SkipsRecentRecords(t *testing.T) {
	env := testutil.NewTestEnv(t)
	v := env.CreateRunning("fresh")
	env.Driver.SetStatus(env.ProjectName(v.ID), runtime.StatusExited)

	r := resultFor(t, env.Orch.Reconcile(context.Background(), orchestrator.ReconcileOptions{}), v.ID)
	assert.NotEmpty(t, r.Skipped)
	assert.False(t, r.Changed())
	assert.Empty(t, env.Driver.GetCallsFor("Status"))
}

func TestReconcile_UnchangedKeepsUpdatedAt(t *testing.T) {
	env := testutil.NewTestEnv(t)
	v := env.CreateRunning("steady")

	before, err := env.Orch.Get(context.Background(), v.ID)
	require.NoError(t, err)

	r := resultFor(t, env.Orch.Reconcile(context.Background(), orchestrator.ReconcileOptions{All: true}), v.ID)
	assert.False(t, r.Changed())
	assert.Empty(t, r.Skipped)

	after, err := env.Orch.Get(context.Background(), v.ID)
	require.NoError(t, err)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt), "UpdatedAt moved from %s to %s", before.UpdatedAt, after.UpdatedAt)
	require.NotNil(t, after.Observed)
	assert.Equal(t, string(runtime.StatusRunning), after.Observed.RuntimeStatus)
}

// Package testutil provides test fixtures and utilities.
//
// NewTestEnv builds a complete App over temporary state and environments
// directories with a mock runtime driver:
//
//	env := testutil.NewTestEnv(t)
//	env.AddProject("projects/line-a")
//	def, _ := testutil.CleanDefinition()
//	v, err := env.Orch.Create(ctx, *def)
//
// # Fixtures
//
// YAML environment definitions are embedded using go:embed:
//
//	fixtures/clean.yaml
//	fixtures/restore.yaml
//	fixtures/invalid.yaml
//
// For custom parsing or testing edge cases:
//
//	data, err := testutil.LoadFixture("clean.yaml")
package testutil

package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/ho"
	"github.com/thalesfsp/ho/internal/config"
)

func writeTestConfig(t *testing.T, storePath string, extra string) string {
	t.Helper()

	content := `
name: cli
search_space:
  - name: x
    min: -5
    max: 10
  - name: y
    min: 0
    max: 15
phases:
  - generator: random
    trial_quota: 4
    min_observed: 2
    max_concurrent: 2
    enforce_quota: true
    seed: 1
  - generator: bayesian
    trial_quota: 3
    max_concurrent: 1
    seed: 2
    bayesian:
      num_candidates: 16
objective:
  function: branin
store:
  path: ` + storePath + `
log:
  level: error
` + extra

	path := filepath.Join(t.TempDir(), "ho.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	t.Cleanup(func() {
		runName, runResume, runMetricsAddr, inspectJSON = "", false, "", false
	})

	err := rootCmd.Execute()

	return out.String(), err
}

func TestRunInspectList(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "store")
	cfgPath := writeTestConfig(t, storePath, "")

	out, err := execute(t, "run", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, `strategy "cli": 7 completed`)
	assert.Contains(t, out, "best trial")

	out, err = execute(t, "inspect", "cli", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "GENERATOR")
	assert.Contains(t, out, "bayesian")
	assert.Contains(t, out, "completed")

	out, err = execute(t, "inspect", "cli", "--json", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"current_phase"`)

	out, err = execute(t, "list", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "cli")
}

func TestRunResume(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "store")
	cfgPath := writeTestConfig(t, storePath, "")

	_, err := execute(t, "run", "-c", cfgPath, "--name", "resumable")
	require.NoError(t, err)

	out, err := execute(t, "run", "-c", cfgPath, "--name", "resumable", "--resume")
	require.NoError(t, err)
	assert.Contains(t, out, "0 completed", "the snapshot already used every quota")

	_, err = execute(t, "run", "-c", cfgPath, "--name", "unknown", "--resume")
	assert.ErrorContains(t, err, "no snapshot named")
}

func TestInspectMissing(t *testing.T) {
	cfgPath := writeTestConfig(t, filepath.Join(t.TempDir(), "store"), "")

	_, err := execute(t, "inspect", "ghost", "-c", cfgPath)
	assert.ErrorContains(t, err, "no snapshot named")
}

func TestObjectives(t *testing.T) {
	ctx := context.Background()

	sphereFn, err := newObjective(config.Objective{Function: "sphere"}, 2)
	require.NoError(t, err)

	v, err := sphereFn(ctx, ho.Point{3, 4})
	require.NoError(t, err)
	assert.Equal(t, 25.0, v)

	rosen, err := newObjective(config.Objective{Function: "rosenbrock"}, 2)
	require.NoError(t, err)

	v, err = rosen(ctx, ho.Point{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	braninFn, err := newObjective(config.Objective{Function: "branin"}, 2)
	require.NoError(t, err)

	v, err = braninFn(ctx, ho.Point{math.Pi, 2.275})
	require.NoError(t, err)
	assert.InDelta(t, 0.397887, v, 1e-5)

	sleepFn, err := newObjective(config.Objective{Function: "sleep"}, 1)
	require.NoError(t, err)

	v, err = sleepFn(ctx, ho.Point{1})
	require.NoError(t, err)
	assert.Positive(t, v)

	_, err = newObjective(config.Objective{Function: "branin"}, 3)
	assert.Error(t, err)

	_, err = newObjective(config.Objective{Function: "rosenbrock"}, 1)
	assert.Error(t, err)

	_, err = newObjective(config.Objective{Function: "nope"}, 1)
	assert.Error(t, err)
}

func TestObjectiveFailureRate(t *testing.T) {
	always, err := newObjective(config.Objective{Function: "sphere", FailureRate: 1, Seed: 1}, 1)
	require.NoError(t, err)

	_, err = always(context.Background(), ho.Point{1})
	assert.ErrorIs(t, err, errInjectedFailure)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	never, err := newObjective(config.Objective{Function: "sleep"}, 1)
	require.NoError(t, err)

	_, err = never(canceled, ho.Point{1000})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatPoint(t *testing.T) {
	space := ho.SearchSpace{{Name: "lr", Min: 0, Max: 1}, {Name: "workers", Min: 1, Max: 8, Integer: true}}

	assert.Equal(t, "{lr=0.125, workers=3}", formatPoint(space, ho.Point{0.125, 3}))
	assert.Equal(t, "{x0=1}", formatPoint(nil, ho.Point{1}))
}

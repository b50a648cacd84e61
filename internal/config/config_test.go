package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/ho"
)

const validYAML = `
name: tuning
search_space:
  - name: lr
    min: 0.001
    max: 0.1
  - name: workers
    min: 1
    max: 8
    integer: true
phases:
  - generator: random
    trial_quota: 5
    min_observed: 3
    max_concurrent: 5
    enforce_quota: true
    seed: 1
  - generator: bayesian
    max_concurrent: 3
    seed: 2
    bayesian:
      acquisition: ei
      num_candidates: 64
objective:
  function: branin
runner:
  batch_size: 2
  workers: 6
store:
  in_memory: true
log:
  level: debug
  format: json
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ho.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "tuning", cfg.Name)
	require.Len(t, cfg.SearchSpace, 2)
	assert.True(t, cfg.SearchSpace[1].Integer)

	require.Len(t, cfg.Phases, 2)
	assert.Equal(t, 5, cfg.Phases[0].TrialQuota)
	assert.True(t, cfg.Phases[0].EnforceQuota)
	assert.Equal(t, "ei", cfg.Phases[1].Bayesian.Acquisition)
	assert.Equal(t, 64, cfg.Phases[1].Bayesian.NumCandidates)

	assert.Equal(t, "branin", cfg.Objective.Function)
	assert.Equal(t, 2, cfg.Runner.BatchSize)
	assert.Equal(t, 6, cfg.Runner.Workers)
	assert.True(t, cfg.Store.InMemory)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
search_space:
  - name: x
    min: -1
    max: 1
phases:
  - generator: bayesian
`))
	require.NoError(t, err)

	assert.Equal(t, ho.DefaultStrategyName, cfg.Name)
	assert.Equal(t, "sphere", cfg.Objective.Function)
	assert.Equal(t, 1, cfg.Runner.BatchSize)
	assert.Equal(t, ho.DefaultMetric, cfg.Runner.Metric)
	assert.Equal(t, ".ho", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	b := cfg.Phases[0].Bayesian
	assert.Equal(t, "ucb", b.Acquisition)
	assert.Equal(t, 2.0, b.Beta)
	assert.Equal(t, 0.01, b.Xi)
	assert.Equal(t, ho.DefaultMetric, b.Metric)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HO_NAME", "from-env")
	t.Setenv("HO_STORE_PATH", "/tmp/ho-env")
	t.Setenv("HO_RUNNER_BATCH_SIZE", "4")
	t.Setenv("HO_LOG_LEVEL", "warn")

	path := writeConfig(t, `
search_space:
  - name: x
    min: 0
    max: 1
phases:
  - generator: random
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, "/tmp/ho-env", cfg.Store.Path)
	assert.Equal(t, 4, cfg.Runner.BatchSize)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadInvalid(t *testing.T) {
	base := `
search_space:
  - name: x
    min: 0
    max: 1
`

	tests := []struct {
		name    string
		content string
	}{
		{name: "no phases", content: base},
		{name: "no search space", content: "phases:\n  - generator: random\n"},
		{name: "unknown generator", content: base + "phases:\n  - generator: grid\n"},
		{name: "negative quota", content: base + "phases:\n  - generator: random\n    trial_quota: -1\n"},
		{name: "min observed above quota", content: base + "phases:\n  - generator: random\n    trial_quota: 2\n    min_observed: 3\n"},
		{name: "unknown acquisition", content: base + "phases:\n  - generator: bayesian\n    bayesian:\n      acquisition: magic\n"},
		{name: "inverted range", content: "search_space:\n  - name: x\n    min: 2\n    max: 1\nphases:\n  - generator: random\n"},
		{name: "unknown objective", content: base + "phases:\n  - generator: random\nobjective:\n  function: ackley\n"},
		{name: "failure rate", content: base + "phases:\n  - generator: random\nobjective:\n  failure_rate: 2\n"},
		{name: "name with slash", content: base + "name: a/b\nphases:\n  - generator: random\n"},
		{name: "negative workers", content: base + "phases:\n  - generator: random\nrunner:\n  workers: -1\n"},
		{name: "log level", content: base + "phases:\n  - generator: random\nlog:\n  level: loud\n"},
		{name: "malformed yaml", content: "phases: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFileTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.yaml")
	require.NoError(t, os.WriteFile(path, make([]byte, maxConfigFileSize+1), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "limit")
}

func TestBuildPhases(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	phases, err := cfg.BuildPhases()
	require.NoError(t, err)
	require.Len(t, phases, 2)

	assert.Equal(t, ho.GeneratorRandom, phases[0].GeneratorID)
	assert.IsType(t, &ho.RandomGenerator{}, phases[0].Generator)
	assert.Equal(t, 5, phases[0].TrialQuota)
	assert.Equal(t, 3, phases[0].MinObservedBeforeAdvance)

	assert.Equal(t, ho.GeneratorBayesian, phases[1].GeneratorID)
	assert.IsType(t, &ho.BayesianGenerator{}, phases[1].Generator)
	assert.Equal(t, ho.Unbounded, phases[1].TrialQuota)

	s, err := ho.NewStrategy(phases, ho.WithName(cfg.Name))
	require.NoError(t, err)

	candidates, err := s.Generate(context.Background(), 5, nil)
	require.NoError(t, err)

	for _, c := range candidates {
		assert.True(t, cfg.Space().Contains(c.Point))
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "name", envKey("HO_NAME"))
	assert.Equal(t, "store.path", envKey("HO_STORE_PATH"))
	assert.Equal(t, "runner.batch_size", envKey("HO_RUNNER_BATCH_SIZE"))
	assert.Equal(t, "objective.failure_rate", envKey("HO_OBJECTIVE_FAILURE_RATE"))
}

// Package config loads generation strategy runs from YAML and the
// environment.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/thalesfsp/ho"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "HO_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

var validate = validator.New()

// Config describes one optimization run.
type Config struct {
	Name        string      `koanf:"name" validate:"required,excludes=/"`
	SearchSpace []Parameter `koanf:"search_space" validate:"required,min=1,dive"`
	Phases      []Phase     `koanf:"phases" validate:"required,min=1,dive"`
	Objective   Objective   `koanf:"objective"`
	Runner      Runner      `koanf:"runner"`
	Store       Store       `koanf:"store"`
	Log         Log         `koanf:"log"`
}

// Parameter is one search space dimension.
type Parameter struct {
	Name    string  `koanf:"name" validate:"required"`
	Min     float64 `koanf:"min"`
	Max     float64 `koanf:"max" validate:"gtefield=Min"`
	Integer bool    `koanf:"integer"`
}

// Phase is one generation phase.
type Phase struct {
	Generator     string   `koanf:"generator" validate:"required,oneof=random bayesian"`
	TrialQuota    int      `koanf:"trial_quota" validate:"gte=0"`
	MinObserved   int      `koanf:"min_observed" validate:"gte=0"`
	MaxConcurrent int      `koanf:"max_concurrent" validate:"gte=0"`
	EnforceQuota  bool     `koanf:"enforce_quota"`
	Seed          int64    `koanf:"seed"`
	Random        Random   `koanf:"random"`
	Bayesian      Bayesian `koanf:"bayesian"`
}

// Random holds RandomGenerator settings.
type Random struct {
	MaxDraws int `koanf:"max_draws" validate:"gte=0"`
}

// Bayesian holds BayesianGenerator settings.
type Bayesian struct {
	Metric        string  `koanf:"metric"`
	Maximize      bool    `koanf:"maximize"`
	NumCandidates int     `koanf:"num_candidates" validate:"gte=0"`
	Acquisition   string  `koanf:"acquisition" validate:"omitempty,oneof=ucb pi ei thompson"`
	Beta          float64 `koanf:"beta" validate:"gte=0"`
	Xi            float64 `koanf:"xi" validate:"gte=0"`
	Sigma         float64 `koanf:"sigma" validate:"gte=0"`
	MaxDraws      int     `koanf:"max_draws" validate:"gte=0"`
}

// Objective selects the built-in function the CLI evaluates.
type Objective struct {
	Function    string  `koanf:"function" validate:"oneof=sphere rosenbrock branin sleep"`
	FailureRate float64 `koanf:"failure_rate" validate:"gte=0,lte=1"`
	Seed        int64   `koanf:"seed"`
}

// Runner configures the trial runner.
type Runner struct {
	BatchSize int    `koanf:"batch_size" validate:"gte=1"`
	Workers   int    `koanf:"workers" validate:"gte=0"`
	Metric    string `koanf:"metric" validate:"required"`
	Maximize  bool   `koanf:"maximize"`
}

// Store configures snapshot persistence.
type Store struct {
	Path     string `koanf:"path" validate:"required_without=InMemory"`
	InMemory bool   `koanf:"in_memory"`
}

// Log configures the CLI logger.
type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Load reads the YAML file at path, applies HO_* environment overrides,
// fills defaults and validates the result. An empty path skips the file.
//
// Environment variables map on their first underscore after the prefix:
//
//	HO_STORE_PATH       -> store.path
//	HO_RUNNER_BATCH_SIZE -> runner.batch_size
//	HO_NAME             -> name
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readFile(path)
		if err != nil {
			return nil, err
		}

		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks struct constraints and the cross-field rules of phases.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	for i, p := range c.Phases {
		if p.TrialQuota != ho.Unbounded && p.MinObserved > p.TrialQuota {
			return fmt.Errorf("phases[%d]: min_observed %d exceeds trial_quota %d", i, p.MinObserved, p.TrialQuota)
		}
	}

	return nil
}

// Space returns the configured search space.
func (c *Config) Space() ho.SearchSpace {
	space := make(ho.SearchSpace, len(c.SearchSpace))
	for i, p := range c.SearchSpace {
		space[i] = ho.Dimension{Name: p.Name, Min: p.Min, Max: p.Max, Integer: p.Integer}
	}

	return space
}

// BuildPhases turns the configured phases into descriptors with their
// generators.
func (c *Config) BuildPhases() ([]ho.PhaseDescriptor, error) {
	space := c.Space()
	phases := make([]ho.PhaseDescriptor, 0, len(c.Phases))

	for i, p := range c.Phases {
		gen, err := buildGenerator(space, p)
		if err != nil {
			return nil, fmt.Errorf("phases[%d]: %w", i, err)
		}

		phases = append(phases, ho.PhaseDescriptor{
			GeneratorID:              p.Generator,
			Generator:                gen,
			TrialQuota:               p.TrialQuota,
			MinObservedBeforeAdvance: p.MinObserved,
			MaxConcurrent:            p.MaxConcurrent,
			EnforceQuota:             p.EnforceQuota,
		})
	}

	return phases, nil
}

func buildGenerator(space ho.SearchSpace, p Phase) (ho.Generator, error) {
	switch p.Generator {
	case ho.GeneratorRandom:
		return ho.NewRandomGenerator(space, ho.RandomConfig{
			Seed:     p.Seed,
			MaxDraws: p.Random.MaxDraws,
		})

	case ho.GeneratorBayesian:
		acquisition, err := ho.AcquisitionByName(p.Bayesian.Acquisition)
		if err != nil {
			return nil, err
		}

		return ho.NewBayesianGenerator(space, ho.BayesianConfig{
			Metric:        p.Bayesian.Metric,
			Maximize:      p.Bayesian.Maximize,
			NumCandidates: p.Bayesian.NumCandidates,
			Acquisition:   acquisition,
			AcqParams: ho.AcquisitionParams{
				Beta: p.Bayesian.Beta,
				Xi:   p.Bayesian.Xi,
			},
			Sigma:    p.Bayesian.Sigma,
			Seed:     p.Seed,
			MaxDraws: p.Bayesian.MaxDraws,
		})

	default:
		return nil, fmt.Errorf("unknown generator %q", p.Generator)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Name == "" {
		cfg.Name = ho.DefaultStrategyName
	}

	if cfg.Objective.Function == "" {
		cfg.Objective.Function = "sphere"
	}

	if cfg.Runner.BatchSize == 0 {
		cfg.Runner.BatchSize = 1
	}

	if cfg.Runner.Metric == "" {
		cfg.Runner.Metric = ho.DefaultMetric
	}

	if cfg.Store.Path == "" && !cfg.Store.InMemory {
		cfg.Store.Path = ".ho"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}

	for i := range cfg.Phases {
		b := &cfg.Phases[i].Bayesian
		if b.Metric == "" {
			b.Metric = cfg.Runner.Metric
			b.Maximize = cfg.Runner.Maximize
		}

		if b.Acquisition == "" {
			b.Acquisition = "ucb"
		}

		if b.Beta == 0 {
			b.Beta = 2.0
		}

		if b.Xi == 0 {
			b.Xi = 0.01
		}
	}
}

// envKey maps HO_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))

	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}

	return parts[0] + "." + parts[1]
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s is %d bytes, limit is %d", path, info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return content, nil
}

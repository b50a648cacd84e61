package ho

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"
)

//////
// Exported functionalities.
//////

// DefaultConfig returns a default configuration.
func DefaultConfig() OptimizationConfig {
	return OptimizationConfig{
		Iterations:      50,
		InitialSamples:  10,
		NumCandidates:   50,
		Parallelism:     1,
		AcquisitionFunc: UCB,
		AcqParams: AcquisitionParams{
			BestSoFar: math.MaxFloat64,
			Beta:      2.0,
			Xi:        0.01,
		},
		ProgressChan: nil, // Default to no progress updates.
	}
}

// Result is the outcome of Optimize.
type Result[T Number] struct {
	// BestParams are the parameters of the fastest completed trial, in the
	// same order as the ranges.
	BestParams []T

	// BestTime is the execution time of BestParams in nanoseconds;
	// math.MaxFloat64 when no trial completed.
	BestTime float64

	// Summary is the runner's summary.
	Summary RunSummary

	// State is the final strategy snapshot.
	State StrategyState
}

// NewDefaultStrategy builds the classic two-phase strategy over space:
//
//  1. "random": InitialSamples uniform trials, at most Parallelism at once.
//     At least half of them must complete before the next phase starts.
//  2. "bayesian": Iterations Gaussian-Process guided trials, at most
//     Parallelism at once.
//
// A phase whose count is zero is left out.
func NewDefaultStrategy(space SearchSpace, config OptimizationConfig, opts ...Option) (*Strategy, error) {
	parallelism := config.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	var phases []PhaseDescriptor

	if config.InitialSamples < 0 || config.Iterations < 0 {
		return nil, &ConfigurationError{Phase: -1, Field: "OptimizationConfig", Reason: "InitialSamples and Iterations must not be negative"}
	}

	if config.InitialSamples > 0 {
		random, err := NewRandomGenerator(space, RandomConfig{Seed: config.Seed})
		if err != nil {
			return nil, err
		}

		phases = append(phases, PhaseDescriptor{
			GeneratorID:              GeneratorRandom,
			Generator:                random,
			TrialQuota:               config.InitialSamples,
			MinObservedBeforeAdvance: (config.InitialSamples + 1) / 2,
			MaxConcurrent:            parallelism,
			EnforceQuota:             true,
		})
	}

	if config.Iterations > 0 {
		bayesian, err := NewBayesianGenerator(space, BayesianConfig{
			NumCandidates: config.NumCandidates,
			Acquisition:   config.AcquisitionFunc,
			AcqParams:     config.AcqParams,
			Seed:          config.Seed,
		})
		if err != nil {
			return nil, err
		}

		phases = append(phases, PhaseDescriptor{
			GeneratorID:   GeneratorBayesian,
			Generator:     bayesian,
			TrialQuota:    config.Iterations,
			MaxConcurrent: parallelism,
		})
	}

	return NewStrategy(phases, opts...)
}

// Optimize uses Bayesian optimization to find the parameters for which
// benchmarkFunc runs fastest. It runs the strategy built by
// NewDefaultStrategy with a Runner and reports progress on
// config.ProgressChan.
//
// Usage example:
//
//	ranges := []ParameterRange[int64]{
//	    {Min: 1024, Max: 1048576},  // Buffer size (1KB to 1MB)
//	    {Min: 1, Max: 32},          // Worker count
//	}
//
//	result, err := Optimize(ctx, DefaultConfig(), func(params ...int64) error {
//	    return runWorkload(params[0], params[1])
//	}, ranges...)
//
// Important notes:
// - Failed benchmarks mark their trial failed; they never become the best
// - Total runtime = InitialSamples + Iterations evaluations
// - Memory usage scales with number of evaluations
func Optimize[T Number](
	ctx context.Context,
	config OptimizationConfig,
	benchmarkFunc BenchmarkFunc[T],
	hypers ...ParameterRange[T],
) (Result[T], error) {
	result := Result[T]{
		BestParams: make([]T, len(hypers)),
		BestTime:   math.MaxFloat64,
	}

	strategy, err := NewDefaultStrategy(SpaceFromRanges(hypers...), config)
	if err != nil {
		return result, err
	}

	progress := newProgressReporter(config.ProgressChan, strategy)

	runner := &Runner{
		Strategy:  strategy,
		Objective: BenchmarkObjective(benchmarkFunc),
		BatchSize: 1,
		Logger:    zap.NewNop(),
		OnResult:  progress.report,
	}

	summary, err := runner.Run(ctx)

	result.Summary = summary
	result.State = strategy.Snapshot()

	if summary.Best != nil {
		result.BestParams = pointToParams[T](summary.Best.Point)
		result.BestTime = summary.Best.Mean
	}

	return result, err
}

// OptimizeHyperparameters is Optimize without a context or error: it
// returns the best parameters found, or zero values when no trial
// completed.
func OptimizeHyperparameters[T Number](
	config OptimizationConfig,
	benchmarkFunc BenchmarkFunc[T],
	hypers ...ParameterRange[T],
) []T {
	result, _ := Optimize(context.Background(), config, benchmarkFunc, hypers...)

	return result.BestParams
}

//////
// Progress reporting.
//////

// progressReporter turns trial results into ProgressUpdates.
type progressReporter struct {
	mu       sync.Mutex
	ch       chan<- ProgressUpdate
	quotas   []int
	finished map[int]int
	best     []float64
	bestTime float64
}

func newProgressReporter(ch chan<- ProgressUpdate, s *Strategy) *progressReporter {
	phases := s.Phases()
	quotas := make([]int, len(phases))

	for i, p := range phases {
		quotas[i] = p.TrialQuota
	}

	return &progressReporter{
		ch:       ch,
		quotas:   quotas,
		finished: make(map[int]int),
		bestTime: math.MaxFloat64,
	}
}

func (p *progressReporter) report(res TrialResult) {
	if p.ch == nil {
		return
	}

	p.mu.Lock()

	phase := res.Candidate.Phase
	p.finished[phase]++

	if res.Status == StatusCompleted && res.Value < p.bestTime {
		p.bestTime = res.Value
		p.best = res.Candidate.Point.Clone()
	}

	update := ProgressUpdate{
		Phase:             res.Candidate.GeneratorID,
		PhaseIndex:        phase,
		TrialID:           res.Candidate.TrialID,
		CurrentIteration:  p.finished[phase],
		TotalIterations:   p.quotas[phase],
		Failed:            res.Status == StatusFailed,
		CurrentParams:     res.Candidate.Point.Clone(),
		CurrentBestParams: Point(p.best).Clone(),
		CurrentBestTime:   p.bestTime,
		LastExecutionTime: res.Value,
	}

	p.mu.Unlock()

	select {
	case p.ch <- update:
	default:
		// Skip update if channel is full.
	}
}

package ho

import (
	"math/rand"

	"golang.org/x/exp/constraints"
)

// Number is the set of numeric types a parameter can have.
type Number interface {
	constraints.Integer | constraints.Float
}

// ProgressUpdate represents the current state of the optimization process.
type ProgressUpdate struct {
	// Phase is the generator ID of the phase that produced the trial
	// ("random" for initial sampling, "bayesian" for optimization).
	Phase string

	// PhaseIndex is the strategy phase the trial belongs to.
	PhaseIndex int

	// TrialID is the ledger ID of the trial just finished.
	TrialID TrialID

	// CurrentIteration is the number of trials finished in this phase.
	CurrentIteration int

	// TotalIterations is the phase's trial quota.
	TotalIterations int

	// Failed is true when the benchmark returned an error.
	Failed bool

	// CurrentParams holds the parameter values being tested
	CurrentParams []float64

	// CurrentBestParams holds the best parameters found so far
	CurrentBestParams []float64

	// CurrentBestTime holds the best execution time found so far
	CurrentBestTime float64

	// LastExecutionTime holds the execution time of the last test
	LastExecutionTime float64
}

// ParameterRange defines the valid range for a hyperparameter in the optimization process.
// Each hyperparameter must have a minimum and maximum value to define its search space.
//
// Type Parameter:
//   - T: The numeric type for this parameter range (int64 or float64)
//
// Fields:
// - Min: The minimum (inclusive) value for this hyperparameter
// - Max: The maximum (inclusive) value for this hyperparameter
//
// Usage:
//
//	// Example 1: Buffer size range from 1KB to 1MB
//	bufferSizeRange := ParameterRange[int64]{
//	    Min: 1024,      // 1KB
//	    Max: 1048576,   // 1MB
//	}
//
//	// Example 2: Learning rate range from 0.0001 to 0.1
//	learningRateRange := ParameterRange[float64]{
//	    Min: 0.0001,
//	    Max: 0.1,
//	}
//
// Validation:
// - Min must be less than or equal to Max
// - The range is inclusive of both Min and Max values
type ParameterRange[T Number] struct {
	// Name is optional and only used in logs and configuration.
	Name string

	// Min defines the minimum allowed value (inclusive) for this hyperparameter.
	Min T

	// Max defines the maximum allowed value (inclusive) for this hyperparameter.
	Max T
}

// BenchmarkFunc defines the signature for functions that will be optimized.
// This function type represents the task whose parameters you want to optimize.
//
// Type Parameter:
//   - T: The numeric type for parameters (int64 or float64)
//
// Parameters:
//   - params: Variable number of numeric parameters representing the hyperparameters
//     to be optimized. The number of parameters must match the number of
//     ParameterRange values provided to OptimizeHyperparameters.
//
// Returns:
// - error: Return nil if the benchmark succeeded, or an error if it failed.
// A failed benchmark marks its trial Failed.
//
// Usage example:
//
//	intBenchmark := BenchmarkFunc[int64](func(params ...int64) error {
//	    bufferSize := params[0]
//	    workerCount := params[1]
//
//	    _, err := runYourWorkload(bufferSize, workerCount)
//	    return err
//	})
type BenchmarkFunc[T Number] func(params ...T) error

// AcquisitionFunc defines the signature for acquisition functions used in the
// Bayesian optimization process. These functions help decide which points in the
// parameter space should be evaluated next.
//
// Parameters:
// - mean: The predicted mean performance at a point (lower is better)
// - variance: The predicted variance/uncertainty at that point
// - params: Additional parameters needed by specific acquisition functions
//
// Returns:
// - float64: Acquisition value (lower values indicate more promising points)
//
// Built-in acquisition functions:
// - UCB: Upper Confidence Bound
// - ProbabilityOfImprovement: Probability of finding better value
// - ExpectedImprovement: Expected magnitude of improvement
// - ThompsonSampling: Random sampling from posterior
//
// Implementation notes for custom acquisition functions:
// - Should handle edge cases (zero variance, extreme means)
// - Should return lower values for more promising points
type AcquisitionFunc func(mean, variance float64, params AcquisitionParams) float64

// AcquisitionParams holds parameters used by different acquisition functions to make decisions
// about which points to sample next in the optimization process.
type AcquisitionParams struct {
	// Beta controls the exploration-exploitation trade-off in the Upper Confidence Bound (UCB)
	// acquisition function.
	// - Higher values (e.g., 3.0 or 5.0) encourage more exploration of uncertain areas
	// - Lower values (e.g., 0.1 or 0.5) focus more on exploiting known good areas
	Beta float64

	// Xi is an exploration parameter used in Probability of Improvement (PI)
	// and Expected Improvement (EI) acquisition functions. It controls how much improvement
	// we want over the current best observation.
	Xi float64

	// BestSoFar is the best (lowest) standardized observation. The Bayesian
	// generator sets it before every selection.
	BestSoFar float64

	// RandomState is the random number generator used by Thompson Sampling.
	// When nil, the Bayesian generator supplies its own seeded one.
	RandomState *rand.Rand
}

// OptimizationConfig holds all configuration parameters for the Bayesian optimization process.
// It allows you to control how the optimization behaves, including its thoroughness,
// exploration strategy, and computational budget.
//
// Fields explanation:
// - Iterations: Number of optimization steps after initial sampling
// - InitialSamples: Number of random samples to take before starting optimization
// - NumCandidates: Number of random candidates to evaluate per iteration
// - Parallelism: Number of benchmarks allowed to run at the same time
// - AcquisitionFunc: Strategy for choosing next points to evaluate
// - AcqParams: Parameters for the acquisition function
//
// Usage example:
//
//	config := DefaultConfig()
//	config.Iterations = 50
//	config.InitialSamples = 10
//	config.Parallelism = 4
//	config.AcquisitionFunc = ExpectedImprovement
//
// Note:
// - Create separate configs for parallel optimizations.
type OptimizationConfig struct {
	// Iterations determines how many trials the Bayesian phase produces
	// after the initial sampling phase.
	// Recommended range: 20-200
	Iterations int

	// InitialSamples determines how many random points to evaluate before
	// starting the optimization process. All of them must complete before
	// the Bayesian phase starts.
	// Recommended range: 5-20
	InitialSamples int

	// NumCandidates determines how many random candidates to consider in each
	// iteration before selecting the best one to evaluate.
	// Recommended range: 50-500
	NumCandidates int

	// Parallelism caps how many benchmarks run at once in each phase.
	// Values below 1 are treated as 1.
	Parallelism int

	// AcquisitionFunc determines the strategy for selecting the next point to
	// evaluate. See AcquisitionFunc type for built-in options.
	AcquisitionFunc AcquisitionFunc

	// AcqParams holds the parameters for the acquisition function.
	AcqParams AcquisitionParams

	// Seed makes the random parts of the search reproducible. Zero seeds
	// from the clock.
	Seed int64

	// ProgressChan is used to send progress updates during optimization
	// If nil, no updates will be sent
	ProgressChan chan<- ProgressUpdate
}

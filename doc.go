// Package ho provides automated hyperparameter optimization built on
// sequential generation strategies: an ordered list of phases, each bound to
// a candidate generator, that hands out trials and moves from one phase to
// the next as trial-count and observation thresholds are met.
//
// # Features
//
// The package includes the following key features:
//
//   - Generation strategies: chain quasi-random initialization with
//     model-based optimization, or any Generator you write
//   - Admission control: per-phase limits on trials in flight
//   - Quota enforcement: a phase can refuse to over-produce until enough of
//     its trials completed
//   - Trial ledger: lifecycle tracking (pending, running, completed, failed,
//     abandoned) and the pending-point set generators must avoid
//   - Bayesian Optimization: Gaussian Process regression with UCB, PI, EI
//     and Thompson Sampling acquisition functions
//   - Snapshots: a strategy's state can be saved and restored exactly
//   - Thread-safe Implementation: one lock serializes every strategy
//     operation
//
// # Strategies
//
// A Strategy is built from PhaseDescriptors:
//
//	random, _ := ho.NewRandomGenerator(space, ho.RandomConfig{})
//	bayes, _ := ho.NewBayesianGenerator(space, ho.BayesianConfig{})
//
//	strategy, err := ho.NewStrategy([]ho.PhaseDescriptor{
//	    {GeneratorID: "random", Generator: random, TrialQuota: 5,
//	        MinObservedBeforeAdvance: 3, MaxConcurrent: 5, EnforceQuota: true},
//	    {GeneratorID: "bayesian", Generator: bayes, MaxConcurrent: 3},
//	})
//
// The caller asks for candidates, runs them, and reports back:
//
//	candidates, err := strategy.Generate(ctx, 3, data)
//	// ... evaluate ...
//	err = strategy.ReportStatus(candidates[0].TrialID, ho.StatusCompleted)
//
// Generate fails with ErrMaxParallelismReached or ErrDataRequired when the
// caller should wait for trials to finish, and with ErrStrategyExhausted
// when every phase is done. Runner implements that loop with parallel
// workers.
//
// # Acquisition Functions
//
// The library provides four acquisition functions for different optimization
// strategies. All of them return lower values for more promising points.
//
//  1. Upper Confidence Bound (UCB): default choice, Beta controls exploration
//  2. Probability of Improvement (PI): conservative, Xi is the minimum
//     improvement
//  3. Expected Improvement (EI): balances probability and magnitude
//  4. Thompson Sampling: random draw from the posterior
//
// # One-call optimization
//
// OptimizeHyperparameters runs the classic two-phase strategy against a
// benchmark function and returns the fastest parameters:
//
//	config := ho.DefaultConfig()
//	config.Parallelism = 4
//
//	best := ho.OptimizeHyperparameters(config, func(params ...int) error {
//	    return runWorkload(params[0], params[1])
//	}, ho.ParameterRange[int]{Min: 1, Max: 100}, ho.ParameterRange[int]{Min: 1, Max: 8})
package ho

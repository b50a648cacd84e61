package ho

import (
	"fmt"
	"math"
	"strings"
)

//////
// Available acquisition functions for Bayesian optimization.
// Each function helps decide which points to evaluate next by balancing
// exploration (trying new areas) and exploitation (focusing on known good areas).
// Lower values are better everywhere: the Bayesian generator minimizes.
//////

// UCB implements the Upper Confidence Bound acquisition function.
//
// How it works:
// - Combines the predicted mean performance with the uncertainty (variance)
// - The Beta parameter controls the trade-off between exploration and exploitation
//
// Example:
//
//	params := AcquisitionParams{
//	    Beta: 2.0,  // Balance between exploration and exploitation
//	}
//	value := UCB(0.5, 0.2, params)  // Evaluate a point with mean=0.5, variance=0.2
func UCB(mean, variance float64, params AcquisitionParams) float64 {
	return mean - params.Beta*math.Sqrt(variance)
}

// ProbabilityOfImprovement (PI) scores a point by the probability that it
// does NOT improve on BestSoFar by at least Xi, so that lower stays better.
//
// When to use:
// - When you want to be conservative in exploring new points
// - When you're fine with small improvements
func ProbabilityOfImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(variance)
	if sigma == 0 {
		if mean < params.BestSoFar-params.Xi {
			return 0
		}

		return 1
	}

	z := (mean - params.BestSoFar + params.Xi) / sigma

	return normalCDF(z)
}

// ExpectedImprovement (EI) returns the negated expected improvement over
// BestSoFar - Xi.
//
// How it works:
// - Combines the probability of improvement with the magnitude of improvement
// - Often provides better exploration than PI
func ExpectedImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(variance)
	improvement := params.BestSoFar - params.Xi - mean

	if sigma == 0 {
		return -math.Max(improvement, 0)
	}

	z := improvement / sigma

	return -(improvement*normalCDF(z) + sigma*normalPDF(z))
}

// ThompsonSampling draws one sample from the posterior at the point.
//
// Warning:
// - params.RandomState must be set; the Bayesian generator does so when the
// configuration leaves it nil
func ThompsonSampling(mean, variance float64, params AcquisitionParams) float64 {
	return mean + math.Sqrt(variance)*params.RandomState.NormFloat64()
}

// AcquisitionByName resolves "ucb", "pi", "ei" or "thompson" (case
// insensitive, long names accepted) to its function.
func AcquisitionByName(name string) (AcquisitionFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "ucb", "upper_confidence_bound":
		return UCB, nil
	case "pi", "probability_of_improvement":
		return ProbabilityOfImprovement, nil
	case "ei", "expected_improvement":
		return ExpectedImprovement, nil
	case "thompson", "ts", "thompson_sampling":
		return ThompsonSampling, nil
	default:
		return nil, &ConfigurationError{
			Phase:  -1,
			Field:  "acquisition",
			Reason: fmt.Sprintf("unknown acquisition function %q", name),
		}
	}
}

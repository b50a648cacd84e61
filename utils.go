package ho

import (
	"math"
	"time"
)

//////
// Helper functions.
//////

// Helper function used by PI and EI to compute the cumulative distribution
// function of the standard normal distribution.
//
// Returns:
// - Probability that a standard normal random variable is less than x.
func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

// Helper function used by EI to compute the probability density function
// of the standard normal distribution.
//
// Returns:
// - Value of the standard normal PDF at x.
func normalPDF(x float64) float64 {
	return math.Exp(-x*x/2.0) / math.Sqrt(2.0*math.Pi)
}

// measureExecutionTime runs a benchmark function with the given parameters and
// measures its execution time in nanoseconds.
//
// Important notes:
// - Time measurement includes only the execution of f, not parameter preparation
// - The duration is returned even when f fails
func measureExecutionTime[T Number](f BenchmarkFunc[T], params []T) (float64, error) {
	start := time.Now()

	err := f(params...)

	return float64(time.Since(start).Nanoseconds()), err
}

// pointToParams converts a point to typed parameters. Integer types are
// rounded, not truncated, so values drawn near a bound stay in range.
func pointToParams[T Number](p Point) []T {
	half := 0.5
	integer := T(half) == 0

	params := make([]T, len(p))

	for i, v := range p {
		if integer {
			v = math.Round(v)
		}

		params[i] = T(v)
	}

	return params
}

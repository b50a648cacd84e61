package ho

import (
	"math"
)

//////
// Const, vars, types.
//////

// minVariance keeps predictions strictly positive; the kernel-sum variance
// estimate can dip below zero near dense clusters of observations.
const minVariance = 1e-9

// gaussianProcess is a light RBF-kernel regression model used by the
// Bayesian generator to predict the outcome of untested points.
//
// Fields:
// - X: Observed input points, normalized to the unit cube
// - Y: Observed values at each input point, standardized
// - sigma: Kernel width controlling the smoothness of interpolation
//
// A model is built per Generate call and never shared, so it carries no
// lock.
type gaussianProcess struct {
	X     [][]float64
	Y     []float64
	sigma float64
}

//////
// Methods.
//////

// RBFKernel implements the Radial Basis Function (also known as Gaussian) kernel.
// This kernel measures the similarity between two points in the input space,
// with the similarity decreasing exponentially with distance.
//
// Mathematical formula:
//
//	k(x1, x2) = exp(-sum((x1 - x2)^2) / (2 * sigma^2))
//
// Important notes:
// - Panics if input vectors have different lengths
// - Returns 1.0 for identical points
// - Returns values close to 0.0 for distant points
func (gp *gaussianProcess) RBFKernel(x1, x2 []float64) float64 {
	if len(x1) != len(x2) {
		panic("input vectors must have the same length")
	}

	var sum float64

	for i := range x1 {
		diff := x1[i] - x2[i]

		sum += diff * diff
	}

	return math.Exp(-sum / (2 * gp.sigma * gp.sigma))
}

// Predict estimates the expected value and uncertainty at x based on the
// observed points.
//
// Mathematical details:
// - Mean is the kernel-weighted average of observed values
// - Variance starts at 1 and shrinks with similarity to observed points
// - Returns (0, 1) if no observations exist
//
// Performance considerations:
// - O(n^2) time complexity for the variance, n being the observations
func (gp *gaussianProcess) Predict(x []float64) (mean, variance float64) {
	if len(gp.X) == 0 {
		return 0, 1
	}

	k := make([]float64, len(gp.X))
	for i := range gp.X {
		k[i] = gp.RBFKernel(x, gp.X[i])
	}

	var sum float64

	for i := range gp.X {
		sum += k[i] * gp.Y[i]
	}

	mean = sum / float64(len(gp.X))

	variance = 1.0

	for i := range gp.X {
		for j := range gp.X {
			variance -= k[i] * k[j] / float64(len(gp.X))
		}
	}

	return mean, math.Max(variance, minVariance)
}

// Update adds an observation. x is copied.
func (gp *gaussianProcess) Update(x []float64, y float64) {
	newX := make([]float64, len(x))
	copy(newX, x)

	gp.X = append(gp.X, newX)
	gp.Y = append(gp.Y, y)
}

// Believe adds x as if it had been observed at its current predicted mean.
// Used for in-flight and already-selected points: it lowers the variance
// around them without moving the mean, so a batch spreads out.
func (gp *gaussianProcess) Believe(x []float64) {
	mean, _ := gp.Predict(x)
	gp.Update(x, mean)
}

// Len returns the number of observations, believed ones included.
func (gp *gaussianProcess) Len() int {
	return len(gp.X)
}

//////
// Factory.
//////

// newGaussianProcess returns an empty model with kernel width sigma. A
// non-positive sigma falls back to 1.0.
func newGaussianProcess(sigma float64) *gaussianProcess {
	if sigma <= 0 {
		sigma = 1.0
	}

	return &gaussianProcess{
		sigma: sigma,
	}
}

// standardize returns (v - mean) / stddev for every value. A constant
// series maps to zeros.
func standardize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	var mean float64
	for _, v := range values {
		mean += v
	}

	mean /= float64(len(values))

	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}

	std := math.Sqrt(ss / float64(len(values)))

	for i, v := range values {
		if std == 0 {
			continue
		}

		out[i] = (v - mean) / std
	}

	return out
}

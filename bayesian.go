package ho

import (
	"context"
	"math"
	"math/rand"
	"sync"
)

//////
// Const, vars, types.
//////

// GeneratorBayesian is the ID conventionally used for BayesianGenerator
// phases.
const GeneratorBayesian = "bayesian"

// DefaultMetric is the metric name used when a BayesianConfig leaves Metric
// empty. Runner records objective values under it.
const DefaultMetric = "objective"

// BayesianConfig configures a BayesianGenerator.
type BayesianConfig struct {
	// Metric is the observed metric the model is fitted to.
	Metric string

	// Maximize flips the objective; the default minimizes, like the
	// execution-time benchmarks.
	Maximize bool

	// NumCandidates is the size of the random candidate pool scored per
	// call. Recommended range: 50-500.
	NumCandidates int

	// Acquisition scores candidates (lower is better). Nil means UCB.
	Acquisition AcquisitionFunc

	// AcqParams is passed to Acquisition. BestSoFar is overwritten.
	AcqParams AcquisitionParams

	// Sigma is the RBF kernel width in the normalized unit cube. Zero
	// means 0.25.
	Sigma float64

	// Seed for candidate sampling and Thompson draws. Zero seeds from the
	// clock.
	Seed int64

	// MaxDraws bounds redraws when a candidate collides with a pending
	// point. Zero means DefaultMaxDraws.
	MaxDraws int
}

// Validate checks the configuration.
func (c BayesianConfig) Validate() error {
	switch {
	case c.NumCandidates < 0:
		return &ConfigurationError{Phase: -1, Field: "BayesianConfig.NumCandidates", Reason: "must not be negative"}
	case c.Sigma < 0:
		return &ConfigurationError{Phase: -1, Field: "BayesianConfig.Sigma", Reason: "must not be negative"}
	case c.MaxDraws < 0:
		return &ConfigurationError{Phase: -1, Field: "BayesianConfig.MaxDraws", Reason: "must not be negative"}
	}

	return nil
}

// BayesianGenerator picks points by fitting a Gaussian Process to the
// observations of one metric and minimizing an acquisition function over a
// pool of random candidates.
//
// With no observation of its metric it behaves like a RandomGenerator.
type BayesianGenerator struct {
	mu    sync.Mutex
	space SearchSpace
	cfg   BayesianConfig
	rng   *rand.Rand
}

//////
// Methods.
//////

// Generate returns req.N points, none of them in req.Pending.
//
// How it works:
// 1. Fits the model to the observations of the configured metric
// 2. Adds every pending point as a believed observation
// 3. Draws NumCandidates random candidates
// 4. For each requested point, selects the candidate with the lowest
// acquisition value and believes it before selecting the next
func (g *BayesianGenerator) Generate(ctx context.Context, req GenerateRequest) ([]Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	taken := keySet(req.Pending)
	observations := req.Data.ForMetric(g.cfg.Metric)

	if len(observations) == 0 {
		return drawFresh(g.space, g.rng, req.N, g.cfg.MaxDraws, taken)
	}

	gp := newGaussianProcess(g.cfg.Sigma)

	values := make([]float64, len(observations))
	for i, o := range observations {
		values[i] = o.Mean
		if g.cfg.Maximize {
			values[i] = -o.Mean
		}
	}

	ys := standardize(values)
	best := math.MaxFloat64

	for i, o := range observations {
		gp.Update(g.space.Normalize(o.Point), ys[i])
		best = math.Min(best, ys[i])
	}

	for _, p := range req.Pending {
		if len(p) == len(g.space) {
			gp.Believe(g.space.Normalize(p))
		}
	}

	poolSize := g.cfg.NumCandidates
	if poolSize < 2*req.N {
		poolSize = 2 * req.N
	}

	pool, err := drawPool(g.space, g.rng, poolSize, g.cfg.MaxDraws, taken)
	if err != nil && len(pool) < req.N {
		return nil, err
	}

	params := g.cfg.AcqParams
	params.BestSoFar = best

	if params.RandomState == nil {
		params.RandomState = g.rng
	}

	out := make([]Point, 0, req.N)

	for len(out) < req.N {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pick := -1
		bestAcquisition := math.Inf(1)

		for i, c := range pool {
			if c == nil {
				continue
			}

			mean, variance := gp.Predict(g.space.Normalize(c))

			acquisition := g.cfg.Acquisition(mean, variance, params)
			if pick < 0 || acquisition < bestAcquisition {
				pick = i
				bestAcquisition = acquisition
			}
		}

		chosen := pool[pick]
		pool[pick] = nil

		gp.Believe(g.space.Normalize(chosen))
		out = append(out, chosen)
	}

	return out, nil
}

// Space returns the generator's search space.
func (g *BayesianGenerator) Space() SearchSpace {
	return g.space
}

//////
// Helpers.
//////

// drawPool samples up to n distinct candidates outside taken. Unlike
// drawFresh it returns what it managed to draw alongside the error.
func drawPool(space SearchSpace, rng *rand.Rand, n, maxDraws int, taken map[string]struct{}) ([]Point, error) {
	pool := make([]Point, 0, n)

	for len(pool) < n {
		points, err := drawFresh(space, rng, 1, maxDraws, taken)
		if err != nil {
			return pool, err
		}

		pool = append(pool, points[0])
	}

	return pool, nil
}

//////
// Factory.
//////

// NewBayesianGenerator returns a model-based generator over space.
func NewBayesianGenerator(space SearchSpace, cfg BayesianConfig) (*BayesianGenerator, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Metric == "" {
		cfg.Metric = DefaultMetric
	}

	if cfg.NumCandidates == 0 {
		cfg.NumCandidates = 50
	}

	if cfg.Acquisition == nil {
		cfg.Acquisition = UCB
	}

	if cfg.Sigma == 0 {
		cfg.Sigma = 0.25
	}

	if cfg.MaxDraws == 0 {
		cfg.MaxDraws = DefaultMaxDraws
	}

	return &BayesianGenerator{
		space: space,
		cfg:   cfg,
		rng:   newRand(cfg.Seed),
	}, nil
}

package ho

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

//////
// Const, vars, types.
//////

// GeneratorRandom is the ID conventionally used for RandomGenerator phases.
const GeneratorRandom = "random"

// DefaultMaxDraws is the number of redraws allowed per point before a
// generator gives up finding a point that is not already pending.
const DefaultMaxDraws = 100

// ErrSearchSpaceExhausted is returned when no fresh point could be drawn,
// typically because a small integer space is fully pending.
var ErrSearchSpaceExhausted = errors.New("no unused point left in search space")

// RandomConfig configures a RandomGenerator.
type RandomConfig struct {
	// Seed for the generator's RNG. Zero seeds from the clock.
	Seed int64

	// MaxDraws bounds redraws per point when a draw collides with a pending
	// point. Zero means DefaultMaxDraws.
	MaxDraws int
}

// Validate checks the configuration.
func (c RandomConfig) Validate() error {
	if c.MaxDraws < 0 {
		return &ConfigurationError{Phase: -1, Field: "RandomConfig.MaxDraws", Reason: "must not be negative"}
	}

	return nil
}

// RandomGenerator draws uniform points from a search space. It is the usual
// first phase of a strategy: it needs no data and spreads the initial
// trials over the space.
type RandomGenerator struct {
	mu       sync.Mutex
	space    SearchSpace
	rng      *rand.Rand
	maxDraws int
}

//////
// Methods.
//////

// Generate returns req.N distinct points, none of them in req.Pending.
func (g *RandomGenerator) Generate(ctx context.Context, req GenerateRequest) ([]Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	taken := keySet(req.Pending)

	return drawFresh(g.space, g.rng, req.N, g.maxDraws, taken)
}

// Space returns the generator's search space.
func (g *RandomGenerator) Space() SearchSpace {
	return g.space
}

//////
// Helpers.
//////

func keySet(points []Point) map[string]struct{} {
	set := make(map[string]struct{}, len(points))
	for _, p := range points {
		set[p.Key()] = struct{}{}
	}

	return set
}

// drawFresh samples n points not present in taken, adding each to taken.
func drawFresh(space SearchSpace, rng *rand.Rand, n, maxDraws int, taken map[string]struct{}) ([]Point, error) {
	out := make([]Point, 0, n)

	for len(out) < n {
		var (
			p     Point
			fresh bool
		)

		for attempt := 0; attempt < maxDraws; attempt++ {
			p = space.Sample(rng)
			if _, dup := taken[p.Key()]; !dup {
				fresh = true

				break
			}
		}

		if !fresh {
			return nil, fmt.Errorf("%w: %d of %d points drawn after %d attempts", ErrSearchSpaceExhausted, len(out), n, maxDraws)
		}

		taken[p.Key()] = struct{}{}
		out = append(out, p)
	}

	return out, nil
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return rand.New(rand.NewSource(seed))
}

//////
// Factory.
//////

// NewRandomGenerator returns a uniform sampler over space.
func NewRandomGenerator(space SearchSpace, cfg RandomConfig) (*RandomGenerator, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	maxDraws := cfg.MaxDraws
	if maxDraws == 0 {
		maxDraws = DefaultMaxDraws
	}

	return &RandomGenerator{
		space:    space,
		rng:      newRand(cfg.Seed),
		maxDraws: maxDraws,
	}, nil
}

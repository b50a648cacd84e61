package ho

import (
	"fmt"
	"math"
	"math/rand"
)

// Dimension is one axis of a SearchSpace.
type Dimension struct {
	Name    string  `json:"name"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Integer bool    `json:"integer"`
}

// SearchSpace is the box candidates are drawn from. Points are ordered like
// the dimensions.
type SearchSpace []Dimension

// SpaceFromRanges builds a SearchSpace from typed parameter ranges. Integer
// types produce integer dimensions.
func SpaceFromRanges[T Number](ranges ...ParameterRange[T]) SearchSpace {
	half := 0.5
	integer := T(half) == 0

	space := make(SearchSpace, len(ranges))
	for i, r := range ranges {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("x%d", i)
		}

		space[i] = Dimension{
			Name:    name,
			Min:     float64(r.Min),
			Max:     float64(r.Max),
			Integer: integer,
		}
	}

	return space
}

// Validate checks that the space is non-empty and every range is ordered
// and finite.
func (sp SearchSpace) Validate() error {
	if len(sp) == 0 {
		return &ConfigurationError{Phase: -1, Field: "SearchSpace", Reason: "at least one dimension is required"}
	}

	for _, d := range sp {
		if math.IsNaN(d.Min) || math.IsNaN(d.Max) || math.IsInf(d.Min, 0) || math.IsInf(d.Max, 0) {
			return &ConfigurationError{Phase: -1, Field: "SearchSpace." + d.Name, Reason: "bounds must be finite"}
		}

		if d.Min > d.Max {
			return &ConfigurationError{Phase: -1, Field: "SearchSpace." + d.Name, Reason: "min must not exceed max"}
		}
	}

	return nil
}

// Sample draws a uniform point. Integer dimensions are drawn uniformly from
// the inclusive integer range.
func (sp SearchSpace) Sample(rng *rand.Rand) Point {
	p := make(Point, len(sp))

	for i, d := range sp {
		if d.Integer {
			lo := int64(math.Ceil(d.Min))
			hi := int64(math.Floor(d.Max))

			if hi < lo {
				p[i] = float64(lo)

				continue
			}

			p[i] = float64(lo + rng.Int63n(hi-lo+1))

			continue
		}

		p[i] = d.Min + rng.Float64()*(d.Max-d.Min)
	}

	return p
}

// Normalize maps p into the unit cube so that every dimension weighs the
// same in distance-based models.
func (sp SearchSpace) Normalize(p Point) []float64 {
	out := make([]float64, len(sp))

	for i, d := range sp {
		width := d.Max - d.Min
		if width == 0 || i >= len(p) {
			continue
		}

		out[i] = (p[i] - d.Min) / width
	}

	return out
}

// Contains reports whether p has the right arity and lies in the box.
func (sp SearchSpace) Contains(p Point) bool {
	if len(p) != len(sp) {
		return false
	}

	for i, d := range sp {
		if p[i] < d.Min || p[i] > d.Max {
			return false
		}

		if d.Integer && p[i] != math.Trunc(p[i]) {
			return false
		}
	}

	return true
}

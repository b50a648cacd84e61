package ho

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpace() SearchSpace {
	return SearchSpace{
		{Name: "lr", Min: 0.001, Max: 0.1},
		{Name: "workers", Min: 1, Max: 8, Integer: true},
	}
}

func TestRandomGeneratorStaysInSpace(t *testing.T) {
	space := testSpace()

	gen, err := NewRandomGenerator(space, RandomConfig{Seed: 7})
	require.NoError(t, err)

	points, err := gen.Generate(context.Background(), GenerateRequest{N: 50})
	require.NoError(t, err)
	require.Len(t, points, 50)

	seen := map[string]bool{}

	for _, p := range points {
		assert.True(t, space.Contains(p), "point %v outside space", p)
		assert.False(t, seen[p.Key()], "duplicate point %v", p)
		seen[p.Key()] = true
	}
}

func TestRandomGeneratorIsSeeded(t *testing.T) {
	a, err := NewRandomGenerator(testSpace(), RandomConfig{Seed: 42})
	require.NoError(t, err)

	b, err := NewRandomGenerator(testSpace(), RandomConfig{Seed: 42})
	require.NoError(t, err)

	pa, err := a.Generate(context.Background(), GenerateRequest{N: 5})
	require.NoError(t, err)

	pb, err := b.Generate(context.Background(), GenerateRequest{N: 5})
	require.NoError(t, err)

	assert.Equal(t, pa, pb)
}

func TestRandomGeneratorAvoidsPending(t *testing.T) {
	space := SearchSpace{{Name: "n", Min: 0, Max: 3, Integer: true}}

	gen, err := NewRandomGenerator(space, RandomConfig{Seed: 1})
	require.NoError(t, err)

	pending := []Point{{0}, {2}}

	points, err := gen.Generate(context.Background(), GenerateRequest{N: 2, Pending: pending})
	require.NoError(t, err)

	assert.ElementsMatch(t, []Point{{1}, {3}}, points)
}

func TestRandomGeneratorExhaustsSmallSpace(t *testing.T) {
	space := SearchSpace{{Name: "n", Min: 0, Max: 1, Integer: true}}

	gen, err := NewRandomGenerator(space, RandomConfig{Seed: 1, MaxDraws: 20})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), GenerateRequest{N: 1, Pending: []Point{{0}, {1}}})
	assert.ErrorIs(t, err, ErrSearchSpaceExhausted)
}

func TestRandomGeneratorHonorsContext(t *testing.T) {
	gen, err := NewRandomGenerator(testSpace(), RandomConfig{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = gen.Generate(ctx, GenerateRequest{N: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRandomGeneratorValidation(t *testing.T) {
	_, err := NewRandomGenerator(nil, RandomConfig{})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewRandomGenerator(SearchSpace{{Name: "x", Min: 2, Max: 1}}, RandomConfig{})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewRandomGenerator(testSpace(), RandomConfig{MaxDraws: -1})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestSearchSpace(t *testing.T) {
	space := testSpace()

	assert.Equal(t, []float64{0, 0}, space.Normalize(Point{0.001, 1}))
	assert.Equal(t, []float64{1, 1}, space.Normalize(Point{0.1, 8}))

	assert.True(t, space.Contains(Point{0.05, 3}))
	assert.False(t, space.Contains(Point{0.05, 3.5}), "integer dimension")
	assert.False(t, space.Contains(Point{0.2, 3}), "out of bounds")
	assert.False(t, space.Contains(Point{0.05}), "wrong arity")

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		assert.True(t, space.Contains(space.Sample(rng)))
	}
}

func TestSpaceFromRanges(t *testing.T) {
	ints := SpaceFromRanges(ParameterRange[int]{Min: 1, Max: 10}, ParameterRange[int]{Name: "workers", Min: 2, Max: 4})
	require.Len(t, ints, 2)
	assert.Equal(t, Dimension{Name: "x0", Min: 1, Max: 10, Integer: true}, ints[0])
	assert.Equal(t, "workers", ints[1].Name)

	floats := SpaceFromRanges(ParameterRange[float32]{Min: 0.5, Max: 1.5})
	assert.False(t, floats[0].Integer)
}

func TestPointKey(t *testing.T) {
	assert.Equal(t, Point{1, 2}.Key(), Point{1, 2}.Key())
	assert.NotEqual(t, Point{1, 2}.Key(), Point{2, 1}.Key())
	assert.NotEqual(t, Point{12}.Key(), Point{1, 2}.Key())
}

func TestPointToParams(t *testing.T) {
	assert.Equal(t, []int{2, 7}, pointToParams[int](Point{1.6, 7.2}))
	assert.Equal(t, []float64{1.6, 7.2}, pointToParams[float64](Point{1.6, 7.2}))
}

package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/thalesfsp/ho"
	"github.com/thalesfsp/ho/internal/config"
)

var errInjectedFailure = errors.New("injected failure")

// newObjective returns the configured built-in function. All of them are
// minimized.
func newObjective(cfg config.Objective, dims int) (ho.ObjectiveFunc, error) {
	var f func(ctx context.Context, p ho.Point) (float64, error)

	switch cfg.Function {
	case "sphere":
		f = pure(sphere)
	case "rosenbrock":
		if dims < 2 {
			return nil, fmt.Errorf("rosenbrock needs at least 2 dimensions, got %d", dims)
		}

		f = pure(rosenbrock)
	case "branin":
		if dims != 2 {
			return nil, fmt.Errorf("branin needs exactly 2 dimensions, got %d", dims)
		}

		f = pure(branin)
	case "sleep":
		f = sleep
	default:
		return nil, fmt.Errorf("unknown objective %q", cfg.Function)
	}

	if cfg.FailureRate == 0 {
		return f, nil
	}

	var mu sync.Mutex

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	rng := rand.New(rand.NewSource(seed))

	return func(ctx context.Context, p ho.Point) (float64, error) {
		mu.Lock()
		fail := rng.Float64() < cfg.FailureRate
		mu.Unlock()

		if fail {
			return 0, errInjectedFailure
		}

		return f(ctx, p)
	}, nil
}

func pure(f func(ho.Point) float64) ho.ObjectiveFunc {
	return func(ctx context.Context, p ho.Point) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		return f(p), nil
	}
}

func sphere(p ho.Point) float64 {
	var sum float64
	for _, v := range p {
		sum += v * v
	}

	return sum
}

func rosenbrock(p ho.Point) float64 {
	var sum float64
	for i := 0; i < len(p)-1; i++ {
		a := p[i+1] - p[i]*p[i]
		b := 1 - p[i]
		sum += 100*a*a + b*b
	}

	return sum
}

func branin(p ho.Point) float64 {
	x1, x2 := p[0], p[1]
	b := 5.1 / (4 * math.Pi * math.Pi)
	c := 5 / math.Pi
	t := 1 / (8 * math.Pi)

	y := x2 - b*x1*x1 + c*x1 - 6

	return y*y + 10*(1-t)*math.Cos(x1) + 10
}

// sleep waits for the first parameter in milliseconds, timed like a
// benchmark.
func sleep(ctx context.Context, p ho.Point) (float64, error) {
	start := time.Now()

	timer := time.NewTimer(time.Duration(math.Abs(p[0])) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
		return float64(time.Since(start).Nanoseconds()), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

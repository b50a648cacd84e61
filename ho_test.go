package ho

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sample function to be benchmarked. Larger buffers are slower, so the
// optimizer should drift towards small ones.
func testFuncInt(bufferSize int, multiplier int) error {
	buffer := make([]int, 0, bufferSize)

	// Simulate some work.
	for i := 0; i < 20000; i++ {
		if len(buffer) == bufferSize {
			buffer = buffer[:0]
		}

		buffer = append(buffer, i*multiplier)
	}

	time.Sleep(time.Duration(bufferSize) * 10 * time.Microsecond)

	return nil
}

// Sample function to be benchmarked.
func testFuncFloat(bufferSize float32, multiplier float32) error {
	buffer := []float32{}

	// Simulate some work.
	for i := 0; i < 20000; i++ {
		if len(buffer) == int(bufferSize) {
			buffer = buffer[:0]
		}

		buffer = append(buffer, float32(i)*multiplier)
	}

	time.Sleep(time.Duration(bufferSize) * 10 * time.Microsecond)

	return nil
}

func smallConfig() OptimizationConfig {
	config := DefaultConfig()

	// Keep the runs short.
	config.InitialSamples = 4
	config.Iterations = 6
	config.NumCandidates = 20

	return config
}

func TestOptimizeBufferSize(t *testing.T) {
	// Hyperparameter ranges
	ranges := []ParameterRange[int]{
		{Min: 1, Max: 100},
		{Min: 1, Max: 3},
	}

	optimalSize := OptimizeHyperparameters(
		smallConfig(),
		func(params ...int) error {
			return testFuncInt(params[0], params[1])
		},
		ranges...,
	)

	require.Len(t, optimalSize, 2)
	assert.GreaterOrEqual(t, optimalSize[0], 1)
	assert.LessOrEqual(t, optimalSize[0], 100)
	assert.GreaterOrEqual(t, optimalSize[1], 1)
	assert.LessOrEqual(t, optimalSize[1], 3)
}

func TestOptimizeBufferSizeChannel(t *testing.T) {
	config := smallConfig()

	// Buffered so that no update is dropped.
	progressChan := make(chan ProgressUpdate, config.InitialSamples+config.Iterations)
	config.ProgressChan = progressChan

	ranges := []ParameterRange[int]{
		{Min: 1024, Max: 4096}, // Buffer size.
		{Min: 1, Max: 32},      // Worker count.
	}

	bestParams := OptimizeHyperparameters(
		config,
		func(params ...int) error {
			return testFuncInt(params[0]/256, params[1])
		},
		ranges...,
	)

	close(progressChan)

	var (
		updates int
		phases  = map[string]int{}
		last    ProgressUpdate
	)

	for update := range progressChan {
		updates++
		phases[update.Phase]++
		last = update

		assert.LessOrEqual(t, update.CurrentIteration, update.TotalIterations)
		assert.Len(t, update.CurrentParams, 2)
	}

	assert.Equal(t, config.InitialSamples+config.Iterations, updates)
	assert.Equal(t, config.InitialSamples, phases[GeneratorRandom])
	assert.Equal(t, config.Iterations, phases[GeneratorBayesian])
	assert.LessOrEqual(t, last.CurrentBestTime, last.LastExecutionTime)

	assert.Len(t, bestParams, 2)
}

func TestOptimizeBufferSizeFloat(t *testing.T) {
	ranges := []ParameterRange[float32]{
		{Min: 1, Max: 100}, // Buffer size range
		{Min: 1, Max: 3},   // Multiplier range
	}

	optimalSize := OptimizeHyperparameters[float32](
		smallConfig(),
		func(params ...float32) error {
			return testFuncFloat(params[0], params[1])
		},
		ranges...,
	)

	require.Len(t, optimalSize, 2)
	assert.GreaterOrEqual(t, optimalSize[0], float32(1))
	assert.LessOrEqual(t, optimalSize[0], float32(100))
}

func TestOptimizeParallel(t *testing.T) {
	config := smallConfig()
	config.Parallelism = 3
	config.Seed = 21

	var (
		running    int32
		maxRunning int32
	)

	result, err := Optimize(context.Background(), config, func(params ...float64) error {
		n := atomic.AddInt32(&running, 1)
		defer atomic.AddInt32(&running, -1)

		for {
			old := atomic.LoadInt32(&maxRunning)
			if n <= old || atomic.CompareAndSwapInt32(&maxRunning, old, n) {
				break
			}
		}

		time.Sleep(time.Duration(params[0]) * time.Millisecond)

		return nil
	}, ParameterRange[float64]{Name: "sleep_ms", Min: 1, Max: 10})
	require.NoError(t, err)

	assert.Equal(t, 10, result.Summary.Completed)
	assert.Greater(t, atomic.LoadInt32(&maxRunning), int32(1))
	assert.Len(t, result.State.Trials, 10)
	assert.Less(t, result.BestTime, math.MaxFloat64)
}

func TestOptimizeSkipsFailedBenchmarks(t *testing.T) {
	config := smallConfig()

	result, err := Optimize(context.Background(), config, func(params ...int) error {
		if params[0] < 50 {
			return errors.New("too small")
		}

		return nil
	}, ParameterRange[int]{Min: 1, Max: 100})

	if err != nil {
		// Every initial sample may land below 50.
		require.ErrorIs(t, err, ErrStalled)

		return
	}

	require.NotNil(t, result.Summary.Best)
	assert.GreaterOrEqual(t, result.BestParams[0], 50)
}

func TestOptimizeNoTrials(t *testing.T) {
	config := smallConfig()
	config.InitialSamples = 0
	config.Iterations = 0

	_, err := Optimize(context.Background(), config, func(...int) error { return nil }, ParameterRange[int]{Min: 1, Max: 2})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNewDefaultStrategy(t *testing.T) {
	config := DefaultConfig()
	config.InitialSamples = 5
	config.Iterations = 7
	config.Parallelism = 2

	s, err := NewDefaultStrategy(SearchSpace{{Name: "x", Min: 0, Max: 1}}, config)
	require.NoError(t, err)

	phases := s.Phases()
	require.Len(t, phases, 2)

	assert.Equal(t, GeneratorRandom, phases[0].GeneratorID)
	assert.Equal(t, 5, phases[0].TrialQuota)
	assert.Equal(t, 3, phases[0].MinObservedBeforeAdvance)
	assert.Equal(t, 2, phases[0].MaxConcurrent)
	assert.True(t, phases[0].EnforceQuota)

	assert.Equal(t, GeneratorBayesian, phases[1].GeneratorID)
	assert.Equal(t, 7, phases[1].TrialQuota)
	assert.Equal(t, 2, phases[1].MaxConcurrent)

	config.InitialSamples = 0

	s, err = NewDefaultStrategy(SearchSpace{{Name: "x", Min: 0, Max: 1}}, config)
	require.NoError(t, err)
	assert.Len(t, s.Phases(), 1)

	config.Iterations = -1

	_, err = NewDefaultStrategy(SearchSpace{{Name: "x", Min: 0, Max: 1}}, config)
	assert.ErrorIs(t, err, ErrConfiguration)
}

package ho

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//////
// Const, vars, types.
//////

// ErrStalled is returned by Runner.Run when the strategy needs more
// observed trials but none is in flight, e.g. because too many failed.
var ErrStalled = errors.New("optimization stalled")

// DefaultWorkers caps concurrent evaluations when neither Runner.Workers
// nor the strategy's phases set a limit.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// ObjectiveFunc evaluates one point. An error fails the trial.
type ObjectiveFunc func(ctx context.Context, p Point) (float64, error)

// Checkpointer persists strategy snapshots together with the observations
// gathered so far. store.Store implements it.
type Checkpointer interface {
	Save(ctx context.Context, name string, state StrategyState, data Data) error
}

// TrialResult is the outcome of evaluating one candidate.
type TrialResult struct {
	Candidate Candidate
	Status    TrialStatus
	Value     float64
	Err       error
	Duration  time.Duration
}

// RunSummary describes a finished run.
type RunSummary struct {
	Completed int
	Failed    int
	Abandoned int

	// Best is the best observation of the runner's metric; nil when no
	// trial completed.
	Best *Observation

	// Data holds every observation, the initial ones included.
	Data Data
}

// Runner drives a Strategy: it asks for candidates, evaluates them on
// parallel workers and reports their outcome back.
//
// Runner keeps requesting batches until admission control refuses or
// Workers trials are in flight, then waits for a result.
type Runner struct {
	// Strategy supplies candidates. Required.
	Strategy *Strategy

	// Objective evaluates candidates. Required.
	Objective ObjectiveFunc

	// Metric names the observations recorded for objective values.
	// Defaults to DefaultMetric.
	Metric string

	// Maximize selects the best observation by highest value.
	Maximize bool

	// BatchSize is the number of candidates requested per Generate call.
	// Defaults to 1.
	BatchSize int

	// Workers caps the number of concurrent evaluations. Defaults to the
	// largest MaxConcurrent of the strategy's phases, or DefaultWorkers
	// when a phase has no limit.
	Workers int

	// Data seeds the observations, e.g. when resuming a run.
	Data Data

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Checkpoint, when set, receives a snapshot after every result.
	Checkpoint Checkpointer

	// OnResult, when set, is called from the runner's goroutine after each
	// result has been reported to the strategy.
	OnResult func(TrialResult)
}

// runState is the mutable part of one Run call. Only the Run goroutine
// touches it.
type runState struct {
	data     Data
	summary  RunSummary
	inFlight int
}

//////
// Methods.
//////

// Run evaluates candidates until the strategy is exhausted, ctx is done, or
// an unrecoverable error occurs. In-flight trials are always waited for
// before returning.
//
// Trials left Pending or Running by a previous process are abandoned first:
// nobody is evaluating them anymore.
func (r *Runner) Run(ctx context.Context) (RunSummary, error) {
	if r.Strategy == nil || r.Objective == nil {
		return RunSummary{}, &ConfigurationError{Phase: -1, Field: "Runner", Reason: "Strategy and Objective are required"}
	}

	logger := r.logger()
	st := &runState{data: append(Data(nil), r.Data...)}

	for _, id := range r.Strategy.NonTerminalTrials() {
		if err := r.Strategy.ReportStatus(id, StatusAbandoned); err != nil {
			return st.summary, err
		}

		st.summary.Abandoned++
		logger.Warn("abandoned orphaned trial", zap.Int("trial_id", int(id)))
	}

	results := make(chan TrialResult)

	var g errgroup.Group

	runErr := r.loop(ctx, st, &g, results)

	for st.inFlight > 0 {
		if err := r.handle(ctx, st, <-results); err != nil && runErr == nil {
			runErr = err
		}
	}

	_ = g.Wait()

	if best, ok := st.data.Best(r.metric(), !r.Maximize); ok {
		st.summary.Best = &best
	}

	st.summary.Data = st.data

	logger.Info("run finished",
		zap.String("strategy", r.Strategy.Name()),
		zap.Int("completed", st.summary.Completed),
		zap.Int("failed", st.summary.Failed),
		zap.Int("abandoned", st.summary.Abandoned),
		zap.Error(runErr),
	)

	return st.summary, runErr
}

func (r *Runner) loop(ctx context.Context, st *runState, g *errgroup.Group, results chan TrialResult) error {
	batch := r.BatchSize
	if batch < 1 {
		batch = 1
	}

	workers := r.workers()
	request := batch

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if st.inFlight >= workers {
			if err := r.await(ctx, st, results); err != nil {
				return err
			}

			continue
		}

		if free := workers - st.inFlight; request > free {
			request = free
		}

		candidates, err := r.Strategy.Generate(ctx, request, st.data)
		request = batch

		if err == nil {
			for _, c := range candidates {
				if err := r.Strategy.ReportStatus(c.TrialID, StatusRunning); err != nil {
					return err
				}

				st.inFlight++

				c := c
				g.Go(func() error {
					results <- r.evaluate(ctx, c)

					return nil
				})
			}

			continue
		}

		var parallelism *MaxParallelismError

		switch {
		case errors.Is(err, ErrStrategyExhausted):
			return nil

		case errors.As(err, &parallelism) && parallelism.Limit > parallelism.NonTerminal:
			// Room for a smaller batch.
			request = parallelism.Limit - parallelism.NonTerminal

			continue

		case errors.Is(err, ErrMaxParallelismReached), errors.Is(err, ErrDataRequired):
			if st.inFlight == 0 {
				return fmt.Errorf("%w: %w", ErrStalled, err)
			}

			if err := r.await(ctx, st, results); err != nil {
				return err
			}

		default:
			return err
		}
	}
}

// await blocks until one in-flight trial finishes and records it.
func (r *Runner) await(ctx context.Context, st *runState, results chan TrialResult) error {
	select {
	case res := <-results:
		return r.handle(ctx, st, res)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) evaluate(ctx context.Context, c Candidate) TrialResult {
	start := time.Now()
	value, err := r.Objective(ctx, c.Point.Clone())

	return TrialResult{
		Candidate: c,
		Value:     value,
		Err:       err,
		Duration:  time.Since(start),
	}
}

// handle records one result. It always decrements the in-flight count.
func (r *Runner) handle(ctx context.Context, st *runState, res TrialResult) error {
	st.inFlight--

	switch {
	case res.Err == nil:
		res.Status = StatusCompleted
		st.summary.Completed++
		st.data = append(st.data, Observation{
			TrialID: res.Candidate.TrialID,
			Point:   res.Candidate.Point,
			Metric:  r.metric(),
			Mean:    res.Value,
		})
	case ctx.Err() != nil:
		res.Status = StatusAbandoned
		st.summary.Abandoned++
	default:
		res.Status = StatusFailed
		st.summary.Failed++
	}

	if err := r.Strategy.ReportStatus(res.Candidate.TrialID, res.Status); err != nil {
		return err
	}

	r.logger().Debug("trial finished",
		zap.Int("trial_id", int(res.Candidate.TrialID)),
		zap.Int("phase", res.Candidate.Phase),
		zap.String("status", string(res.Status)),
		zap.Float64("value", res.Value),
		zap.Duration("duration", res.Duration),
		zap.NamedError("trial_error", res.Err),
	)

	if r.OnResult != nil {
		r.OnResult(res)
	}

	if r.Checkpoint != nil {
		// The run context may already be cancelled; the snapshot still has
		// to land.
		if err := r.Checkpoint.Save(context.WithoutCancel(ctx), r.Strategy.Name(), r.Strategy.Snapshot(), st.data); err != nil {
			return fmt.Errorf("checkpoint: %w", err)
		}
	}

	return nil
}

func (r *Runner) metric() string {
	if r.Metric == "" {
		return DefaultMetric
	}

	return r.Metric
}

func (r *Runner) workers() int {
	if r.Workers > 0 {
		return r.Workers
	}

	limit := 0

	for _, p := range r.Strategy.Phases() {
		if p.MaxConcurrent == Unbounded {
			return max(DefaultWorkers, 1)
		}

		limit = max(limit, p.MaxConcurrent)
	}

	return limit
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}

	return r.Logger
}

//////
// Factory.
//////

// BenchmarkObjective turns a benchmark into an objective whose value is the
// benchmark's execution time in nanoseconds. Integer parameter types
// receive rounded values.
func BenchmarkObjective[T Number](f BenchmarkFunc[T]) ObjectiveFunc {
	return func(ctx context.Context, p Point) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		return measureExecutionTime(f, pointToParams[T](p))
	}
}

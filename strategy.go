package ho

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

//////
// Const, vars, types.
//////

// DefaultStrategyName labels logs and metrics when WithName is not used.
const DefaultStrategyName = "default"

// Strategy chains generation phases and decides, for every Generate call,
// which phase serves it. It owns the trial ledger; callers only report
// trial status changes.
//
// Thread safety:
// - One mutex guards the phase index and the ledger
// - Generate holds it for the whole call, including generator calls, so two
// concurrent calls can never both pass the same admission check
type Strategy struct {
	mu sync.Mutex

	name    string
	phases  []PhaseDescriptor
	current int
	ledger  *Ledger

	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Strategy) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics reports to m.
func WithMetrics(m *Metrics) Option {
	return func(s *Strategy) {
		s.metrics = m
	}
}

// WithName names the strategy in logs, metrics and snapshots.
func WithName(name string) Option {
	return func(s *Strategy) {
		if name != "" {
			s.name = name
		}
	}
}

// WithClock overrides the time source used to stamp trial records.
func WithClock(now func() time.Time) Option {
	return func(s *Strategy) {
		if now != nil {
			s.now = now
		}
	}
}

// GenerateOption tunes a single Generate call.
type GenerateOption func(*generateOptions)

type generateOptions struct {
	pending  []Point
	override bool
}

// WithPendingOverride replaces the ledger-derived pending set for this call.
func WithPendingOverride(points []Point) GenerateOption {
	return func(o *generateOptions) {
		o.pending = points
		o.override = true
	}
}

// PhaseStats is a read-only view of one phase's progress.
type PhaseStats struct {
	Index         int    `json:"index"`
	GeneratorID   string `json:"generator_id"`
	TrialQuota    int    `json:"trial_quota"`
	MinObserved   int    `json:"min_observed"`
	MaxConcurrent int    `json:"max_concurrent"`
	Produced      int    `json:"produced"`
	NonTerminal   int    `json:"non_terminal"`
	Observed      int    `json:"observed"`
	Current       bool   `json:"current"`
}

// segment is the share of a Generate request served by one phase.
type segment struct {
	phase int
	n     int
}

//////
// Methods.
//////

// Name returns the strategy name.
func (s *Strategy) Name() string {
	return s.name
}

// Phases returns a copy of the phase descriptors.
func (s *Strategy) Phases() []PhaseDescriptor {
	out := make([]PhaseDescriptor, len(s.phases))
	copy(out, s.phases)

	return out
}

// CurrentPhaseIndex returns the index of the active phase. It equals
// len(Phases()) once the strategy is exhausted.
func (s *Strategy) CurrentPhaseIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// CurrentPhase returns the active phase descriptor. A last phase that has
// used its quota stays current until AdvanceIfEligible or Generate moves
// past it; check Generate's ErrStrategyExhausted to detect the end.
func (s *Strategy) CurrentPhase() (PhaseDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current >= len(s.phases) {
		return PhaseDescriptor{}, ErrStrategyExhausted
	}

	return s.phases[s.current], nil
}

// Generate produces exactly n candidates and records each as a Pending
// trial.
//
// When the active phase has fewer than n trials left in its quota and has
// observed enough completed trials, the remainder is served by the
// following phase(s) within the same call. Candidates are returned in
// phase order. Nothing is recorded unless every generator call succeeds.
//
// Errors (match with errors.Is):
// - ErrInvalidBatchSize: n < 1
// - ErrStrategyExhausted: no phase is left to serve the request
// - ErrMaxParallelismReached: see *MaxParallelismError
// - ErrDataRequired: see *DataRequiredError
// - ErrGeneratorContract: a generator returned the wrong number of points
// - anything the generator returned, wrapped
func (s *Strategy) Generate(ctx context.Context, n int, data Data, opts ...GenerateOption) ([]Candidate, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, n)
	}

	var o generateOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	plan, next, err := s.plan(n)
	if err != nil {
		s.rejected(err)

		return nil, err
	}

	var pending []Point
	if o.override {
		pending = append(pending, o.pending...)
	} else {
		pending = s.ledger.PendingPoints()
	}

	batches := make([][]Point, len(plan))

	for i, seg := range plan {
		phase := s.phases[seg.phase]

		points, err := phase.Generator.Generate(ctx, GenerateRequest{
			N:       seg.n,
			Data:    data,
			Pending: pending,
		})
		if err != nil {
			return nil, fmt.Errorf("phase %d (%s): %w", seg.phase, phase.GeneratorID, err)
		}

		if len(points) != seg.n {
			return nil, fmt.Errorf(
				"phase %d (%s): %w: want %d, got %d",
				seg.phase, phase.GeneratorID, ErrGeneratorContract, seg.n, len(points),
			)
		}

		batches[i] = points
		pending = append(pending, points...)
	}

	for s.current < next {
		s.advance()
	}

	out := make([]Candidate, 0, n)

	for i, seg := range plan {
		phase := s.phases[seg.phase]

		for _, p := range batches[i] {
			id := s.ledger.Insert(seg.phase, p)
			out = append(out, Candidate{
				TrialID:     id,
				Phase:       seg.phase,
				GeneratorID: phase.GeneratorID,
				Point:       p.Clone(),
			})
		}

		s.metrics.generated(s.name, seg.phase, phase.GeneratorID, seg.n)
		s.logger.Debug("generated candidates",
			zap.String("strategy", s.name),
			zap.Int("phase", seg.phase),
			zap.String("generator", phase.GeneratorID),
			zap.Int("count", seg.n),
		)
	}

	s.metrics.observe(s.name, s.current, len(s.ledger.nonTerminal))

	return out, nil
}

// ReportStatus moves a trial to status. It never advances the phase: that
// is evaluated on the next Generate or AdvanceIfEligible call.
func (s *Strategy) ReportStatus(id TrialID, status TrialStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.SetStatus(id, status); err != nil {
		return err
	}

	s.metrics.transitioned(s.name, status)
	s.metrics.observe(s.name, s.current, len(s.ledger.nonTerminal))
	s.logger.Debug("trial status changed",
		zap.String("strategy", s.name),
		zap.Int("trial_id", int(id)),
		zap.String("status", string(status)),
	)

	return nil
}

// AdvanceIfEligible moves to the next phase when the active phase has
// observed enough completed trials and, for a bounded quota, has produced
// all of them. It reports whether the phase changed.
func (s *Strategy) AdvanceIfEligible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current >= len(s.phases) || !s.eligible(s.current) {
		return false
	}

	s.advance()
	s.metrics.observe(s.name, s.current, len(s.ledger.nonTerminal))

	return true
}

// PendingPoints returns the points of all in-flight trials.
func (s *Strategy) PendingPoints() []Point {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ledger.PendingPoints()
}

// Trial returns a copy of one trial record.
func (s *Strategy) Trial(id TrialID) (TrialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ledger.Get(id)
}

// Trials returns a copy of every trial record, ordered by ID.
func (s *Strategy) Trials() []TrialRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ledger.Records()
}

// NonTerminalTrials returns the IDs of Pending and Running trials.
func (s *Strategy) NonTerminalTrials() []TrialID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ledger.NonTerminal()
}

// Stats returns the progress of every phase.
func (s *Strategy) Stats() []PhaseStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PhaseStats, len(s.phases))

	for i, p := range s.phases {
		out[i] = PhaseStats{
			Index:         i,
			GeneratorID:   p.GeneratorID,
			TrialQuota:    p.TrialQuota,
			MinObserved:   p.MinObservedBeforeAdvance,
			MaxConcurrent: p.MaxConcurrent,
			Produced:      s.ledger.CountProduced(i),
			NonTerminal:   s.ledger.CountNonTerminal(i),
			Observed:      s.ledger.CountObservedCompleted(i),
			Current:       i == s.current,
		}
	}

	return out
}

// plan splits n over the active phase and, when quotas roll over, the ones
// after it. It does not mutate state; next is the phase index to commit.
func (s *Strategy) plan(n int) (plan []segment, next int, err error) {
	idx := s.current
	remaining := n

	for remaining > 0 {
		if idx >= len(s.phases) {
			return nil, idx, fmt.Errorf("%w: %d of %d candidates could not be served", ErrStrategyExhausted, remaining, n)
		}

		phase := s.phases[idx]
		take := remaining
		advance := false

		if phase.Bounded() {
			room := phase.TrialQuota - s.ledger.CountProduced(idx)
			if room < 0 {
				room = 0
			}

			if remaining > room {
				observed := s.ledger.CountObservedCompleted(idx)

				switch {
				case observed >= phase.MinObservedBeforeAdvance:
					take = room
					advance = true
				case phase.EnforceQuota:
					// A saturated phase reports its concurrency limit
					// before the missing observations.
					if err := s.admit(idx, remaining); err != nil {
						return nil, idx, err
					}

					return nil, idx, &DataRequiredError{
						Phase:       idx,
						Observed:    observed,
						MinObserved: phase.MinObservedBeforeAdvance,
					}
				}
			}
		}

		if take > 0 {
			if err := s.admit(idx, take); err != nil {
				return nil, idx, err
			}

			plan = append(plan, segment{phase: idx, n: take})
			remaining -= take
		}

		if advance {
			idx++
		}
	}

	return plan, idx, nil
}

// admit checks n more trials against the MaxConcurrent limit of phase idx.
func (s *Strategy) admit(idx, n int) error {
	limit := s.phases[idx].MaxConcurrent
	if limit == Unbounded {
		return nil
	}

	running := s.ledger.CountNonTerminal(idx)
	if running+n > limit {
		return &MaxParallelismError{
			Phase:       idx,
			NonTerminal: running,
			Requested:   n,
			Limit:       limit,
		}
	}

	return nil
}

func (s *Strategy) eligible(idx int) bool {
	phase := s.phases[idx]

	if s.ledger.CountObservedCompleted(idx) < phase.MinObservedBeforeAdvance {
		return false
	}

	return !phase.Bounded() || s.ledger.CountProduced(idx) >= phase.TrialQuota
}

func (s *Strategy) advance() {
	from := s.current
	s.current++

	fields := []zap.Field{
		zap.String("strategy", s.name),
		zap.Int("from", from),
		zap.Int("to", s.current),
	}

	if s.current >= len(s.phases) {
		s.logger.Info("generation strategy exhausted", fields...)

		return
	}

	s.logger.Info("advanced to next phase",
		append(fields, zap.String("generator", s.phases[s.current].GeneratorID))...,
	)
}

func (s *Strategy) rejected(err error) {
	var reason string

	switch {
	case errors.Is(err, ErrMaxParallelismReached):
		reason = "max_parallelism"
	case errors.Is(err, ErrDataRequired):
		reason = "data_required"
	case errors.Is(err, ErrStrategyExhausted):
		reason = "exhausted"
	default:
		reason = "other"
	}

	s.metrics.rejected(s.name, reason)
	s.logger.Debug("generate rejected",
		zap.String("strategy", s.name),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

//////
// Factory.
//////

// NewStrategy validates phases and returns a strategy positioned on the
// first one.
func NewStrategy(phases []PhaseDescriptor, opts ...Option) (*Strategy, error) {
	if len(phases) == 0 {
		return nil, &ConfigurationError{Phase: -1, Field: "phases", Reason: "at least one phase is required"}
	}

	for i, p := range phases {
		if err := p.validate(i); err != nil {
			return nil, err
		}
	}

	s := &Strategy{
		name:   DefaultStrategyName,
		phases: make([]PhaseDescriptor, len(phases)),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	copy(s.phases, phases)

	for _, opt := range opts {
		opt(s)
	}

	s.ledger = NewLedger(s.now)

	return s, nil
}

package ho

import (
	"errors"
	"fmt"
)

//////
// Sentinel errors.
//////

var (
	// ErrConfiguration is returned when a phase descriptor or strategy is
	// malformed. Fix the configuration before retrying.
	ErrConfiguration = errors.New("invalid strategy configuration")

	// ErrStrategyExhausted is returned once every phase has been completed.
	// Stop requesting candidates.
	ErrStrategyExhausted = errors.New("generation strategy exhausted")

	// ErrMaxParallelismReached is returned when producing the requested
	// candidates would exceed the current phase's concurrency limit. Wait
	// for in-flight trials to finish and retry.
	ErrMaxParallelismReached = errors.New("max parallelism reached")

	// ErrDataRequired is returned when the current phase has produced its
	// quota, enforces it, and has not yet observed enough completed trials.
	// Wait for more completions and retry.
	ErrDataRequired = errors.New("more observed data required")

	// ErrUnknownTrial is returned when a status report names a trial the
	// ledger never produced.
	ErrUnknownTrial = errors.New("unknown trial")

	// ErrInvalidTransition is returned for a status change the trial
	// lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid trial status transition")

	// ErrInvalidBatchSize is returned when Generate is asked for fewer than
	// one candidate.
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")

	// ErrGeneratorContract is returned when a generator returns a different
	// number of points than requested.
	ErrGeneratorContract = errors.New("generator returned wrong number of points")

	// ErrStateMismatch is returned when a snapshot does not belong to the
	// phases it is being restored onto.
	ErrStateMismatch = errors.New("strategy state does not match phases")
)

//////
// Typed errors.
//////

// ConfigurationError describes which descriptor field is invalid.
type ConfigurationError struct {
	Phase  int
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Phase < 0 {
		return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Field, e.Reason)
	}

	return fmt.Sprintf("%s: phase %d: %s: %s", ErrConfiguration, e.Phase, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) work.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// MaxParallelismError carries the admission-control numbers so the caller
// knows how many trials must finalize before retrying.
type MaxParallelismError struct {
	Phase       int
	NonTerminal int
	Requested   int
	Limit       int
}

func (e *MaxParallelismError) Error() string {
	return fmt.Sprintf(
		"%s: phase %d has %d non-terminal trials, %d requested, limit %d",
		ErrMaxParallelismReached, e.Phase, e.NonTerminal, e.Requested, e.Limit,
	)
}

// Is makes errors.Is(err, ErrMaxParallelismReached) work.
func (e *MaxParallelismError) Is(target error) bool {
	return target == ErrMaxParallelismReached
}

// MustFinalize returns how many in-flight trials have to reach a terminal
// status before the same request can be admitted.
func (e *MaxParallelismError) MustFinalize() int {
	n := e.NonTerminal + e.Requested - e.Limit
	if n < 0 {
		return 0
	}

	return n
}

// DataRequiredError reports how far the phase is from its observation
// minimum.
type DataRequiredError struct {
	Phase       int
	Observed    int
	MinObserved int
}

func (e *DataRequiredError) Error() string {
	return fmt.Sprintf(
		"%s: phase %d has %d observed trials, needs %d",
		ErrDataRequired, e.Phase, e.Observed, e.MinObserved,
	)
}

// Is makes errors.Is(err, ErrDataRequired) work.
func (e *DataRequiredError) Is(target error) bool {
	return target == ErrDataRequired
}

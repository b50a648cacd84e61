package ho

import (
	"fmt"
)

// StrategyState is everything needed to rebuild a Strategy on top of the
// same phase descriptors: the phase index and the full ledger.
type StrategyState struct {
	Name         string        `json:"name"`
	CurrentPhase int           `json:"current_phase"`
	Generators   []string      `json:"generators"`
	Trials       []TrialRecord `json:"trials"`
}

// Snapshot captures the strategy's state. The result shares nothing with
// the strategy.
func (s *Strategy) Snapshot() StrategyState {
	s.mu.Lock()
	defer s.mu.Unlock()

	generators := make([]string, len(s.phases))
	for i, p := range s.phases {
		generators[i] = p.GeneratorID
	}

	return StrategyState{
		Name:         s.name,
		CurrentPhase: s.current,
		Generators:   generators,
		Trials:       s.ledger.Records(),
	}
}

// RestoreStrategy rebuilds a strategy from a snapshot taken of a strategy
// built on the same phases. The snapshot's name is kept unless opts set
// another one.
func RestoreStrategy(phases []PhaseDescriptor, state StrategyState, opts ...Option) (*Strategy, error) {
	s, err := NewStrategy(phases, append([]Option{WithName(state.Name)}, opts...)...)
	if err != nil {
		return nil, err
	}

	if len(state.Generators) != len(phases) {
		return nil, fmt.Errorf("%w: snapshot has %d phases, strategy has %d", ErrStateMismatch, len(state.Generators), len(phases))
	}

	for i, id := range state.Generators {
		if id != phases[i].GeneratorID {
			return nil, fmt.Errorf("%w: phase %d generator %q, snapshot has %q", ErrStateMismatch, i, phases[i].GeneratorID, id)
		}
	}

	if state.CurrentPhase < 0 || state.CurrentPhase > len(phases) {
		return nil, fmt.Errorf("%w: current phase %d out of range", ErrStateMismatch, state.CurrentPhase)
	}

	for _, rec := range state.Trials {
		if rec.Phase < 0 || rec.Phase >= len(phases) {
			return nil, fmt.Errorf("%w: trial %d references phase %d", ErrStateMismatch, rec.ID, rec.Phase)
		}
	}

	ledger, err := restoreLedger(state.Trials, s.now)
	if err != nil {
		return nil, err
	}

	s.ledger = ledger
	s.current = state.CurrentPhase
	s.metrics.observe(s.name, s.current, len(ledger.nonTerminal))

	return s, nil
}

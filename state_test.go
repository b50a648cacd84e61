package ho

import (
	"context"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	phases, _, _ := examplePhases()

	s, err := NewStrategy(phases, WithName("round-trip"), WithClock(fixedClock()))
	require.NoError(t, err)

	_, err = s.Generate(context.Background(), 5, nil)
	require.NoError(t, err)

	require.NoError(t, s.ReportStatus(0, StatusRunning))
	complete(t, s, 1, 2, 3)
	require.NoError(t, s.ReportStatus(4, StatusFailed))

	_, err = s.Generate(context.Background(), 2, nil)
	require.NoError(t, err)

	state := s.Snapshot()

	raw, err := json.Marshal(state)
	require.NoError(t, err)

	var decoded StrategyState
	require.NoError(t, json.Unmarshal(raw, &decoded))

	// Fresh generators with the same IDs, so both instances see identical
	// inputs from here on.
	phasesA, _, _ := examplePhases()
	phasesB, _, _ := examplePhases()

	original, err := RestoreStrategy(phasesA, state, WithClock(fixedClock()))
	require.NoError(t, err)

	restored, err := RestoreStrategy(phasesB, decoded, WithClock(fixedClock()))
	require.NoError(t, err)

	assert.Equal(t, "round-trip", restored.Name())
	assert.Equal(t, s.CurrentPhaseIndex(), restored.CurrentPhaseIndex())
	assert.Equal(t, s.Stats(), restored.Stats())
	assert.Equal(t, s.PendingPoints(), restored.PendingPoints())
	assert.Equal(t, s.Trials(), restored.Trials())

	for _, st := range []*Strategy{original, restored} {
		_, err := st.Generate(context.Background(), 2, nil)
		require.ErrorIs(t, err, ErrMaxParallelismReached)

		require.NoError(t, st.ReportStatus(0, StatusCompleted))
		require.NoError(t, st.ReportStatus(5, StatusAbandoned))
	}

	a, err := original.Generate(context.Background(), 2, nil)
	require.NoError(t, err)

	b, err := restored.Generate(context.Background(), 2, nil)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, original.Snapshot(), restored.Snapshot())
}

func TestSnapshotIsIndependent(t *testing.T) {
	gen := &countingGenerator{}

	s, err := NewStrategy([]PhaseDescriptor{{GeneratorID: "g", Generator: gen}})
	require.NoError(t, err)

	_, err = s.Generate(context.Background(), 1, nil)
	require.NoError(t, err)

	state := s.Snapshot()
	state.Trials[0].Points[0][0] = 99
	state.Trials[0].Status = StatusCompleted

	rec, err := s.Trial(0)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, Point{0}, rec.Points[0])
}

func TestRestoreStrategyMismatch(t *testing.T) {
	phases, _, _ := examplePhases()

	s, err := NewStrategy(phases)
	require.NoError(t, err)

	_, err = s.Generate(context.Background(), 2, nil)
	require.NoError(t, err)

	valid := s.Snapshot()

	tests := []struct {
		name   string
		mutate func(*StrategyState, *[]PhaseDescriptor)
	}{
		{
			name: "phase count",
			mutate: func(_ *StrategyState, p *[]PhaseDescriptor) {
				*p = (*p)[:1]
			},
		},
		{
			name: "generator id",
			mutate: func(_ *StrategyState, p *[]PhaseDescriptor) {
				(*p)[1].GeneratorID = "C"
			},
		},
		{
			name: "phase index out of range",
			mutate: func(st *StrategyState, _ *[]PhaseDescriptor) {
				st.CurrentPhase = 3
			},
		},
		{
			name: "trial phase out of range",
			mutate: func(st *StrategyState, _ *[]PhaseDescriptor) {
				st.Trials[1].Phase = 7
			},
		},
		{
			name: "trial id gap",
			mutate: func(st *StrategyState, _ *[]PhaseDescriptor) {
				st.Trials[1].ID = 5
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := valid
			state.Trials = append([]TrialRecord(nil), valid.Trials...)
			p, _, _ := examplePhases()

			tt.mutate(&state, &p)

			_, err := RestoreStrategy(p, state)
			assert.ErrorIs(t, err, ErrStateMismatch)
		})
	}
}

func TestRestoreExhaustedStrategy(t *testing.T) {
	gen := &countingGenerator{}
	phases := []PhaseDescriptor{{GeneratorID: "g", Generator: gen, TrialQuota: 1}}

	s, err := NewStrategy(phases)
	require.NoError(t, err)

	_, err = s.Generate(context.Background(), 1, nil)
	require.NoError(t, err)
	require.True(t, s.AdvanceIfEligible())

	restored, err := RestoreStrategy(phases, s.Snapshot())
	require.NoError(t, err)

	_, err = restored.CurrentPhase()
	assert.ErrorIs(t, err, ErrStrategyExhausted)
}

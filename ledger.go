package ho

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/looplab/fsm"
)

//////
// Const, vars, types.
//////

// Lifecycle event names, one per reachable target status.
const (
	eventRun      = "run"
	eventComplete = "complete"
	eventFail     = "fail"
	eventAbandon  = "abandon"
)

var (
	trialLifecycle = fsm.Events{
		{Name: eventRun, Src: []string{string(StatusPending)}, Dst: string(StatusRunning)},
		{Name: eventComplete, Src: []string{string(StatusPending), string(StatusRunning)}, Dst: string(StatusCompleted)},
		{Name: eventFail, Src: []string{string(StatusPending), string(StatusRunning)}, Dst: string(StatusFailed)},
		{Name: eventAbandon, Src: []string{string(StatusPending), string(StatusRunning)}, Dst: string(StatusAbandoned)},
	}

	statusEvents = map[TrialStatus]string{
		StatusRunning:   eventRun,
		StatusCompleted: eventComplete,
		StatusFailed:    eventFail,
		StatusAbandoned: eventAbandon,
	}
)

// Ledger records every trial a strategy produced, with per-phase counters
// kept up to date on each change.
//
// A Ledger is not safe for concurrent use. Strategy serializes all access
// behind its own lock.
type Ledger struct {
	records []TrialRecord

	// nonTerminal indexes the IDs of Pending and Running trials.
	nonTerminal map[TrialID]struct{}

	produced          map[int]int
	nonTerminalCounts map[int]int
	observed          map[int]int

	now func() time.Time
}

//////
// Methods.
//////

// Insert records a new Pending trial produced by phase and returns its ID.
func (l *Ledger) Insert(phase int, points ...Point) TrialID {
	id := TrialID(len(l.records))
	ts := l.now()

	rec := TrialRecord{
		ID:        id,
		Phase:     phase,
		Status:    StatusPending,
		Points:    make([]Point, len(points)),
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	for i, p := range points {
		rec.Points[i] = p.Clone()
	}

	l.records = append(l.records, rec)
	l.count(rec, 1)

	return id
}

// SetStatus moves a trial to status, validating the transition against the
// trial lifecycle.
func (l *Ledger) SetStatus(id TrialID, status TrialStatus) error {
	if id < 0 || int(id) >= len(l.records) {
		return fmt.Errorf("%w: %d", ErrUnknownTrial, id)
	}

	rec := &l.records[id]

	if err := checkTransition(rec.Status, status); err != nil {
		return fmt.Errorf("trial %d: %w", id, err)
	}

	l.count(*rec, -1)
	rec.Status = status
	rec.UpdatedAt = l.now()
	l.count(*rec, 1)

	return nil
}

// Get returns a copy of the record for id.
func (l *Ledger) Get(id TrialID) (TrialRecord, error) {
	if id < 0 || int(id) >= len(l.records) {
		return TrialRecord{}, fmt.Errorf("%w: %d", ErrUnknownTrial, id)
	}

	return l.records[id].clone(), nil
}

// Records returns a copy of every record, ordered by ID.
func (l *Ledger) Records() []TrialRecord {
	out := make([]TrialRecord, len(l.records))
	for i, r := range l.records {
		out[i] = r.clone()
	}

	return out
}

// Len returns the number of trials in the ledger.
func (l *Ledger) Len() int {
	return len(l.records)
}

// CountNonTerminal returns the Pending and Running trials of phase.
func (l *Ledger) CountNonTerminal(phase int) int {
	return l.nonTerminalCounts[phase]
}

// CountObservedCompleted returns the Completed trials of phase.
func (l *Ledger) CountObservedCompleted(phase int) int {
	return l.observed[phase]
}

// CountProduced returns every trial phase has produced, whatever its status.
func (l *Ledger) CountProduced(phase int) int {
	return l.produced[phase]
}

// NonTerminal returns the IDs of Pending and Running trials, ascending.
func (l *Ledger) NonTerminal() []TrialID {
	ids := make([]TrialID, 0, len(l.nonTerminal))
	for id := range l.nonTerminal {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// PendingPoints is a shorthand for PendingPoints(l).
func (l *Ledger) PendingPoints() []Point {
	return PendingPoints(l)
}

func (l *Ledger) count(rec TrialRecord, delta int) {
	if delta > 0 && rec.Status == StatusPending {
		l.produced[rec.Phase]++
	}

	if !rec.Status.Terminal() {
		l.nonTerminalCounts[rec.Phase] += delta

		if delta > 0 {
			l.nonTerminal[rec.ID] = struct{}{}
		} else {
			delete(l.nonTerminal, rec.ID)
		}
	}

	if rec.Status.Observed() {
		l.observed[rec.Phase] += delta
	}
}

//////
// Helpers.
//////

// checkTransition runs the requested change through the trial lifecycle
// state machine.
func checkTransition(from, to TrialStatus) error {
	event, ok := statusEvents[to]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	machine := fsm.NewFSM(string(from), trialLifecycle, fsm.Callbacks{})

	if err := machine.Event(context.Background(), event); err != nil {
		return fmt.Errorf("%w: %s -> %s: %v", ErrInvalidTransition, from, to, err)
	}

	return nil
}

//////
// Factory.
//////

// NewLedger returns an empty ledger stamping records with now. A nil now
// uses time.Now.
func NewLedger(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}

	return &Ledger{
		nonTerminal:       make(map[TrialID]struct{}),
		produced:          make(map[int]int),
		nonTerminalCounts: make(map[int]int),
		observed:          make(map[int]int),
		now:               now,
	}
}

// restoreLedger rebuilds a ledger and its counters from records. Records
// must be ordered by ID with no gaps.
func restoreLedger(records []TrialRecord, now func() time.Time) (*Ledger, error) {
	l := NewLedger(now)

	for i, rec := range records {
		if rec.ID != TrialID(i) {
			return nil, fmt.Errorf("%w: trial at position %d has id %d", ErrStateMismatch, i, rec.ID)
		}

		if !rec.Status.Valid() {
			return nil, fmt.Errorf("%w: trial %d has unknown status %q", ErrStateMismatch, rec.ID, rec.Status)
		}

		rec = rec.clone()
		l.records = append(l.records, rec)

		// produced counts every record regardless of its current status.
		l.produced[rec.Phase]++

		if !rec.Status.Terminal() {
			l.nonTerminalCounts[rec.Phase]++
			l.nonTerminal[rec.ID] = struct{}{}
		}

		if rec.Status.Observed() {
			l.observed[rec.Phase]++
		}
	}

	return l, nil
}

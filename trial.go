package ho

import (
	"math"
	"strconv"
	"strings"
	"time"
)

//////
// Const, vars, types.
//////

// TrialID identifies a trial. IDs are assigned by the ledger in creation
// order, starting at 0.
type TrialID int

// TrialStatus is the lifecycle status of a trial.
type TrialStatus string

const (
	// StatusPending is the status of a freshly generated trial.
	StatusPending TrialStatus = "pending"

	// StatusRunning means the trial is being evaluated.
	StatusRunning TrialStatus = "running"

	// StatusCompleted means the trial finished and produced observations.
	StatusCompleted TrialStatus = "completed"

	// StatusFailed means the evaluation failed.
	StatusFailed TrialStatus = "failed"

	// StatusAbandoned means the trial was given up before it finished.
	StatusAbandoned TrialStatus = "abandoned"
)

// Terminal reports whether no further status change is possible.
func (s TrialStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusAbandoned:
		return true
	default:
		return false
	}
}

// Observed reports whether the status counts towards a phase's observation
// minimum.
func (s TrialStatus) Observed() bool {
	return s == StatusCompleted
}

// Valid reports whether s is one of the known statuses.
func (s TrialStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusAbandoned:
		return true
	default:
		return false
	}
}

// Point is one candidate parameter assignment, in search-space order.
type Point []float64

// Key returns a string identifying the point's exact values. Two points
// with the same key are the same candidate.
func (p Point) Key() string {
	var b strings.Builder

	for i, v := range p {
		if i > 0 {
			b.WriteByte(',')
		}

		b.WriteString(strconv.FormatUint(math.Float64bits(v), 16))
	}

	return b.String()
}

// Clone returns an independent copy of p.
func (p Point) Clone() Point {
	if p == nil {
		return nil
	}

	out := make(Point, len(p))
	copy(out, p)

	return out
}

// TrialRecord is the ledger entry for one trial.
type TrialRecord struct {
	ID        TrialID     `json:"id"`
	Phase     int         `json:"phase"`
	Status    TrialStatus `json:"status"`
	Points    []Point     `json:"points"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (r TrialRecord) clone() TrialRecord {
	out := r
	out.Points = make([]Point, len(r.Points))

	for i, p := range r.Points {
		out.Points[i] = p.Clone()
	}

	return out
}

// Candidate is one point returned by Strategy.Generate, already recorded as
// a pending trial.
type Candidate struct {
	TrialID     TrialID
	Phase       int
	GeneratorID string
	Point       Point
}

// Observation is one measured outcome of a trial.
type Observation struct {
	TrialID TrialID `json:"trial_id"`
	Point   Point   `json:"point"`
	Metric  string  `json:"metric"`
	Mean    float64 `json:"mean"`
	SEM     float64 `json:"sem"`
}

// Data is the accumulated set of observations, keyed by trial and metric.
// The strategy passes it through to generators untouched.
type Data []Observation

// ForMetric returns the observations of one metric, in insertion order.
func (d Data) ForMetric(metric string) []Observation {
	out := make([]Observation, 0, len(d))

	for _, o := range d {
		if o.Metric == metric {
			out = append(out, o)
		}
	}

	return out
}

// Best returns the observation with the lowest (minimize) or highest mean
// for metric. ok is false when there is no observation of that metric.
func (d Data) Best(metric string, minimize bool) (best Observation, ok bool) {
	for _, o := range d {
		if o.Metric != metric {
			continue
		}

		if !ok || (minimize && o.Mean < best.Mean) || (!minimize && o.Mean > best.Mean) {
			best, ok = o, true
		}
	}

	return best, ok
}

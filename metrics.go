package ho

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors a Strategy reports to. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	candidates  *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	transitions *prometheus.CounterVec
	phase       *prometheus.GaugeVec
	inFlight    *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ho_candidates_generated_total",
			Help: "Candidates produced by Strategy.Generate",
		}, []string{"strategy", "phase", "generator"}),

		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ho_generate_rejections_total",
			Help: "Generate calls refused by admission control or quota enforcement",
		}, []string{"strategy", "reason"}),

		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ho_trial_status_total",
			Help: "Trial status changes by target status",
		}, []string{"strategy", "status"}),

		phase: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ho_strategy_phase",
			Help: "Current phase index of the strategy",
		}, []string{"strategy"}),

		inFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ho_trials_in_flight",
			Help: "Pending and running trials across all phases",
		}, []string{"strategy"}),
	}
}

func (m *Metrics) generated(strategy string, phase int, generator string, n int) {
	if m == nil {
		return
	}

	m.candidates.WithLabelValues(strategy, strconv.Itoa(phase), generator).Add(float64(n))
}

func (m *Metrics) rejected(strategy, reason string) {
	if m == nil {
		return
	}

	m.rejections.WithLabelValues(strategy, reason).Inc()
}

func (m *Metrics) transitioned(strategy string, status TrialStatus) {
	if m == nil {
		return
	}

	m.transitions.WithLabelValues(strategy, string(status)).Inc()
}

func (m *Metrics) observe(strategy string, phase, inFlight int) {
	if m == nil {
		return
	}

	m.phase.WithLabelValues(strategy).Set(float64(phase))
	m.inFlight.WithLabelValues(strategy).Set(float64(inFlight))
}

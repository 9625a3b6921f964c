// Package metrics exposes action log and turnwheel counters.
//
// Label values are bounded: action kinds, step directions, group kinds and
// refusal reasons are all closed sets.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/daviddao/turnwheel/pkg/action"
)

// Metrics implements actionlog.Observer and turnwheel.Recorder.
type Metrics struct {
	actionsRecorded *prometheus.CounterVec
	steps           *prometheus.CounterVec
	stepActions     *prometheus.HistogramVec
	refused         *prometheus.CounterVec
	sessions        *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		actionsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "turnwheel_actions_recorded_total",
			Help: "Actions appended to the action log",
		}, []string{"kind"}),

		steps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "turnwheel_steps_total",
			Help: "Completed turnwheel steps",
		}, []string{"direction", "group"}),

		stepActions: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "turnwheel_step_actions",
			Help:    "Actions reversed or replayed per step",
			Buckets: []float64{1, 2, 4, 8, 16, 32},
		}, []string{"direction"}),

		refused: f.NewCounterVec(prometheus.CounterOpts{
			Name: "turnwheel_refused_total",
			Help: "Turnwheel operations refused",
		}, []string{"reason"}),

		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "turnwheel_session_events_total",
			Help: "Turnwheel session lifecycle events",
		}, []string{"event"}), // begin, commit, cancel, halt
	}
}

func (m *Metrics) Appended(kind action.Kind) {
	m.actionsRecorded.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) Step(direction, group string, actions int) {
	m.steps.WithLabelValues(direction, group).Inc()
	m.stepActions.WithLabelValues(direction).Observe(float64(actions))
}

func (m *Metrics) Refused(reason string) {
	m.refused.WithLabelValues(reason).Inc()
}

func (m *Metrics) Session(event string) {
	m.sessions.WithLabelValues(event).Inc()
}

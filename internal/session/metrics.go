package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"genstudio/internal/domain"
)

// Metrics records controller outcomes. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	submissions *prometheus.CounterVec
	inFlight    *prometheus.GaugeVec
	duration    *prometheus.HistogramVec
	removals    *prometheus.CounterVec
}

// NewMetrics registers the controller collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "genstudio_submissions_total",
			Help: "Generation submissions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		inFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "genstudio_in_flight",
			Help: "Whether a generation request is currently in flight per kind.",
		}, []string{"kind"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "genstudio_generation_duration_seconds",
			Help:    "Remote generation latency by kind.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"kind"}),
		removals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "genstudio_history_removed_total",
			Help: "History entries removed by the user, by kind and scope.",
		}, []string{"kind", "scope"}),
	}
}

func (m *Metrics) outcome(kind domain.Kind, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(kind), outcome).Inc()
}

func (m *Metrics) started(kind domain.Kind) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(string(kind)).Set(1)
}

func (m *Metrics) finished(kind domain.Kind, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(string(kind)).Set(0)
	m.duration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

func (m *Metrics) removed(kind domain.Kind, scope string) {
	if m == nil {
		return
	}
	m.removals.WithLabelValues(string(kind), scope).Inc()
}

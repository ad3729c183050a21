package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the loop's Prometheus instruments.
type Metrics struct {
	Cycles        prometheus.Counter
	CycleDuration prometheus.Histogram
	Pending       prometheus.Gauge
	Submitted     *prometheus.CounterVec
	Outcomes      *prometheus.CounterVec
	OracleErrors  prometheus.Counter
	CommitErrors  *prometheus.CounterVec
	Panics        prometheus.Counter
}

// NewMetrics creates the loop metrics and registers them with reg.
// A nil reg creates unregistered metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: "paywatch",
			Subsystem: "reconcile",
			Name:      "cycles_total",
			Help:      "Reconciliation cycles run.",
		}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "paywatch",
			Subsystem: "reconcile",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one reconciliation cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		Pending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "paywatch",
			Subsystem: "reconcile",
			Name:      "pending_operations",
			Help:      "Entries left in the store after the last cycle.",
		}),
		Submitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paywatch",
			Subsystem: "reconcile",
			Name:      "submitted_total",
			Help:      "Operations submitted for tracking.",
		}, []string{"kind"}),
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paywatch",
			Subsystem: "reconcile",
			Name:      "outcomes_total",
			Help:      "Terminal transitions won by this process.",
		}, []string{"kind", "state"}),
		OracleErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "paywatch",
			Subsystem: "reconcile",
			Name:      "oracle_errors_total",
			Help:      "Oracle calls that errored or exceeded their wait.",
		}),
		CommitErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paywatch",
			Subsystem: "reconcile",
			Name:      "commit_errors_total",
			Help:      "Failed commit attempts for confirmed payments.",
		}, []string{"kind"}),
		Panics: f.NewCounter(prometheus.CounterOpts{
			Namespace: "paywatch",
			Subsystem: "reconcile",
			Name:      "entry_panics_total",
			Help:      "Panics recovered while processing an entry.",
		}),
	}
}

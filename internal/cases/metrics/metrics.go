package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	CasesSubmitted      *prometheus.CounterVec
	Decisions           *prometheus.CounterVec
	DecideDuration      prometheus.Histogram
	LockWaitDuration    prometheus.Histogram
	Classifications     *prometheus.CounterVec
	CasesExpired        prometheus.Counter
	ExpirySweepFailures prometheus.Counter
}

// New registers the case registry metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CasesSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "casereview_cases_submitted_total",
			Help: "Total number of cases submitted, by kind",
		}, []string{"kind"}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "casereview_decisions_total",
			Help: "Total number of decide calls, by target status and result code",
		}, []string{"to", "result"}),
		DecideDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "casereview_decide_duration_seconds",
			Help:    "Duration of decide calls including persistence and audit",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}),
		LockWaitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "casereview_case_lock_wait_seconds",
			Help:    "Time spent waiting for the per-case lock",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		Classifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "casereview_compliance_classifications_total",
			Help: "Compliance results attached to decided cases, by classification",
		}, []string{"classification"}),
		CasesExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "casereview_cases_expired_total",
			Help: "Total number of cases moved to Expired by the expiry sweep",
		}),
		ExpirySweepFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "casereview_expiry_sweep_failures_total",
			Help: "Total number of cases the expiry sweep failed to expire",
		}),
	}
}

func (m *Metrics) IncSubmitted(kind string) {
	if m == nil {
		return
	}
	m.CasesSubmitted.WithLabelValues(kind).Inc()
}

// ObserveDecision records one decide call; result is "ok" or the error code.
func (m *Metrics) ObserveDecision(to, result string, start time.Time) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(to, result).Inc()
	m.DecideDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.LockWaitDuration.Observe(d.Seconds())
}

func (m *Metrics) IncClassification(classification string) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(classification).Inc()
}

func (m *Metrics) AddExpired(n int) {
	if m == nil {
		return
	}
	m.CasesExpired.Add(float64(n))
}

func (m *Metrics) IncExpiryFailure() {
	if m == nil {
		return
	}
	m.ExpirySweepFailures.Inc()
}

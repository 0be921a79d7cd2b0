package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit recorder.
type Metrics struct {
	FactsRecorded *prometheus.CounterVec
	WriteFailures prometheus.Counter
	ChainBreaks   prometheus.Counter
}

// New registers the audit metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FactsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "casereview_audit_facts_recorded_total",
			Help: "Total number of audit facts recorded",
		}, []string{"entity_type", "outcome"}),
		WriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "casereview_audit_write_failures_total",
			Help: "Total number of audit writes that failed and aborted their operation",
		}),
		ChainBreaks: factory.NewCounter(prometheus.CounterOpts{
			Name: "casereview_audit_chain_breaks_total",
			Help: "Total number of hash chain breaks found during verification",
		}),
	}
}

func (m *Metrics) IncRecorded(entityType, outcome string) {
	m.FactsRecorded.WithLabelValues(entityType, outcome).Inc()
}

func (m *Metrics) IncWriteFailures() {
	m.WriteFailures.Inc()
}

func (m *Metrics) IncChainBreaks() {
	m.ChainBreaks.Inc()
}

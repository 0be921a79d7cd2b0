package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the process-wide Prometheus registry with build and uptime
// series every deployment exports.
type Registry struct {
	*prometheus.Registry
	startedAt time.Time
	uptime    prometheus.GaugeFunc
}

// NewRegistry creates a registry carrying the Go runtime and process collectors
// plus casereview_build_info.
func NewRegistry(version, environment string) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{Registry: reg, startedAt: time.Now()}

	factory := promauto.With(reg)
	factory.NewGauge(prometheus.GaugeOpts{
		Name:        "casereview_build_info",
		Help:        "Build information; the value is always 1",
		ConstLabels: prometheus.Labels{"version": version, "environment": environment},
	}).Set(1)
	r.uptime = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "casereview_uptime_seconds",
		Help: "Seconds since the process registered its metrics",
	}, func() float64 {
		return time.Since(r.startedAt).Seconds()
	})
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{Registry: r.Registry})
}

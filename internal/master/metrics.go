package master

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps a dedicated Prometheus registry with the scheduler's
// counters, grounded on hemzaz-freightliner's pkg/metrics.Registry — the
// one teacher dependency (prometheus/client_golang) SPEC_FULL gives a home
// to that the teacher repo itself declares but never wires.
type Metrics struct {
	registry *prometheus.Registry

	jobsStarted     prometheus.Counter
	jobsStopped     prometheus.Counter
	jobsReaped      prometheus.Counter
	allocatorErrors *prometheus.CounterVec
}

// NewMetrics creates and registers the scheduler's counters on a fresh
// registry, scoped to this process — not the global default registerer.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vizsched_jobs_started_total",
			Help: "Total number of jobs successfully started.",
		}),
		jobsStopped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vizsched_jobs_stopped_total",
			Help: "Total number of jobs stopped via the stop endpoint.",
		}),
		jobsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vizsched_jobs_reaped_total",
			Help: "Total number of jobs removed by the reaper for exceeding their duration.",
		}),
		allocatorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vizsched_allocator_errors_total",
			Help: "Total number of allocator calls that returned an error, by operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(m.jobsStarted, m.jobsStopped, m.jobsReaped, m.allocatorErrors)
	return m
}

// Handler exposes the registered metrics for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

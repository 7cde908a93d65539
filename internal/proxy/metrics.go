package proxy

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps a dedicated Prometheus registry with the proxy's counters,
// mirroring master.Metrics — its own process, its own registry.
type Metrics struct {
	registry *prometheus.Registry

	connectionsOpened prometheus.Counter
	connectionsFailed *prometheus.CounterVec
}

// NewMetrics creates and registers the proxy's counters on a fresh
// registry, scoped to this process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		connectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vizsched_proxy_connections_opened_total",
			Help: "Total number of websocket relays successfully established.",
		}),
		connectionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vizsched_proxy_connections_failed_total",
			Help: "Total number of proxy requests that failed before or during relay, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.connectionsOpened, m.connectionsFailed)
	return m
}

// Handler exposes the registered metrics for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

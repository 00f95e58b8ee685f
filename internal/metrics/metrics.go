// Package metrics holds the Prometheus collectors for both binaries. Each
// Metrics owns its registry so tests can build as many as they like.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	BackendRequests *prometheus.CounterVec
	BackendDuration *prometheus.HistogramVec
	ServerRequests  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		BackendRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codive_backend_requests_total",
				Help: "Requests sent to the codive backend",
			},
			[]string{"code", "method"},
		),
		BackendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "codive_backend_request_duration_seconds",
				Help:    "Latency of requests sent to the codive backend",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"method"},
		),
		ServerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codive_devserver_requests_total",
				Help: "Requests handled by the dev server",
			},
			[]string{"code", "method"},
		),
	}
	m.Registry.MustRegister(m.BackendRequests, m.BackendDuration, m.ServerRequests)
	return m
}

// InstrumentTransport counts and times every round trip through next.
func (m *Metrics) InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	return promhttp.InstrumentRoundTripperCounter(m.BackendRequests,
		promhttp.InstrumentRoundTripperDuration(m.BackendDuration, next))
}

func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(m.ServerRequests, next)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

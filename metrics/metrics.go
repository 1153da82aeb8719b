// Package metrics exposes registry metrics in Prometheus format on a dedicated listener.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves /metrics and records executor metrics.
type MetricsServer struct {
	srv      *http.Server
	registry *prometheus.Registry

	calls           *prometheus.CounterVec
	callDuration    *prometheus.HistogramVec
	currentBlock    prometheus.Gauge
	publishFailures *prometheus.CounterVec
}

// New creates a metrics server for addr. Metric names are prefixed with namespace.
func New(namespace, addr string) (*MetricsServer, error) {
	reg := prometheus.NewRegistry()

	m := &MetricsServer{
		registry: reg,
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Registry calls applied, by call and result.",
		}, []string{"call", "result"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Time spent applying a registry call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"call"}),
		currentBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_block",
			Help:      "Block number of the most recently applied call.",
		}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Events that could not be delivered to a sink.",
		}, []string{"sink"}),
	}

	for _, c := range []prometheus.Collector{
		m.calls,
		m.callDuration,
		m.currentBlock,
		m.publishFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	m.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return m, nil
}

// Registry returns the underlying Prometheus registry.
func (m *MetricsServer) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics handler mux.
func (m *MetricsServer) Handler() http.Handler {
	return m.srv.Handler
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

func (m *MetricsServer) ObserveCall(call, result string, duration time.Duration) {
	m.calls.WithLabelValues(call, result).Inc()
	m.callDuration.WithLabelValues(call).Observe(duration.Seconds())
}

func (m *MetricsServer) SetCurrentBlock(block uint64) {
	m.currentBlock.Set(float64(block))
}

func (m *MetricsServer) IncPublishFailure(sink string) {
	m.publishFailures.WithLabelValues(sink).Inc()
}

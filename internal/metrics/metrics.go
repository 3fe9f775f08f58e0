// Package metrics holds the Prometheus collectors for the detection pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hazardcam"

// Metrics owns its registry so tests can create as many instances as they need.
type Metrics struct {
	registry        *prometheus.Registry
	ActiveSessions  prometheus.Gauge
	FramesTotal     *prometheus.CounterVec
	CyclesTotal     *prometheus.CounterVec
	CapturesTotal   *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	InferenceErrors prometheus.Counter
	AlertViewers    prometheus.Gauge
}

func New() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of open relay sessions",
		}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Inbound frames by decode outcome",
		}, []string{"outcome"}),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed relay cycles by result",
		}, []string{"result"}),
		CapturesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Capture attempts by outcome",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Time from decoded frame to response",
			Buckets:   prometheus.DefBuckets,
		}),
		InferenceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_errors_total",
			Help:      "Detector calls that failed",
		}),
		AlertViewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_viewers",
			Help:      "Connected alert viewers",
		}),
	}
	r.MustRegister(
		m.ActiveSessions, m.FramesTotal, m.CyclesTotal, m.CapturesTotal,
		m.CycleDuration, m.InferenceErrors, m.AlertViewers,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

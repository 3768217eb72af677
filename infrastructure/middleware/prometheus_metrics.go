// Package middleware provides cross-cutting concerns for the
// consistency loop, currently Prometheus-backed metrics collection.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/embodia/pald-loop/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It tracks consistency scores, stage latencies, terminal
// states, and LLM token spend for the loop.
type PrometheusMetrics struct {
	consistencyScore *prometheus.HistogramVec
	finalScore       *prometheus.GaugeVec
	runCounter       *prometheus.CounterVec
	stageLatency     *prometheus.HistogramVec
	tokenCounter     *prometheus.CounterVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and
// registers its metrics in the global Prometheus registry. Call it at
// most once per process.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		consistencyScore: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pald_consistency_score",
				Help:    "Per-iteration consistency score between input and derived PALD.",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"stage"},
		),
		finalScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pald_final_score",
				Help: "Final consistency score of the most recent run.",
			},
			[]string{"state"},
		),
		runCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pald_runs_total",
				Help: "Total consistency loop runs by terminal state.",
			},
			[]string{"state"},
		),
		stageLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pald_stage_duration_seconds",
				Help:    "Latency of generation, description, and full-run stages.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"operation"},
		),
		tokenCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pald_llm_tokens_total",
				Help: "LLM tokens consumed by re-extraction calls.",
			},
			[]string{"provider", "model", "token_type"},
		),
		operationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pald_operations_total",
				Help: "Miscellaneous operation counts by status.",
			},
			[]string{"operation", "status"},
		),
		systemGauges: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pald_system_state",
				Help: "Current system state values.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency records a stage latency observation.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.stageLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter increments the counter matching the metric name.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "consistency_runs_total":
		pm.runCounter.WithLabelValues(labelOr(labels, "state", "unknown")).Add(value)
	case "llm_tokens_total":
		pm.tokenCounter.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "token_type", "unknown"),
		).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, labelOr(labels, "status", "success")).Add(value)
	}
}

// RecordGauge sets the gauge matching the metric name.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	switch metric {
	case "consistency_final_score":
		pm.finalScore.WithLabelValues(labelOr(labels, "state", "unknown")).Set(value)
	default:
		pm.systemGauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram records a value in the histogram matching the metric
// name.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case "consistency_score":
		pm.consistencyScore.WithLabelValues(labelOr(labels, "stage", "iteration")).Observe(value)
	case "llm_latency_seconds":
		pm.stageLatency.WithLabelValues("llm_request").Observe(value)
	default:
		pm.stageLatency.WithLabelValues(metric).Observe(value)
	}
}

func labelOr(labels map[string]string, key, def string) string {
	if val, ok := labels[key]; ok && val != "" {
		return val
	}
	return def
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

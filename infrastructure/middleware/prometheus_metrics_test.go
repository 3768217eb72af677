package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// The collector registers in the global Prometheus registry, so the
// whole file shares one instance.
var testMetrics = NewPrometheusMetrics()

func TestPrometheusMetricsRecording(t *testing.T) {
	// The Prometheus client panics on invalid label usage; recording
	// through every path must not panic.
	assert.NotPanics(t, func() {
		testMetrics.RecordLatency("generation", 250*time.Millisecond, map[string]string{"stage": "iteration"})
		testMetrics.RecordLatency("consistency_run", 2*time.Second, map[string]string{"state": "achieved"})

		testMetrics.RecordCounter("consistency_runs_total", 1, map[string]string{"state": "achieved"})
		testMetrics.RecordCounter("consistency_runs_total", 1, nil)
		testMetrics.RecordCounter("llm_tokens_total", 120, map[string]string{
			"provider": "openai", "model": "gpt-4o-mini", "token_type": "input",
		})
		testMetrics.RecordCounter("some_operation", 1, map[string]string{"status": "error"})

		testMetrics.RecordGauge("consistency_final_score", 0.85, map[string]string{"state": "achieved"})
		testMetrics.RecordGauge("active_runs", 3, nil)

		testMetrics.RecordHistogram("consistency_score", 0.7, map[string]string{"stage": "iteration"})
		testMetrics.RecordHistogram("llm_latency_seconds", 1.2, nil)
		testMetrics.RecordHistogram("custom_metric", 0.1, nil)
	})
}

func TestLabelOr(t *testing.T) {
	labels := map[string]string{"state": "achieved", "empty": ""}

	assert.Equal(t, "achieved", labelOr(labels, "state", "d"))
	assert.Equal(t, "d", labelOr(labels, "empty", "d"))
	assert.Equal(t, "d", labelOr(labels, "missing", "d"))
	assert.Equal(t, "d", labelOr(nil, "state", "d"))
}

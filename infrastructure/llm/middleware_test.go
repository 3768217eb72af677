package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryMiddlewareRecoversFromTransientFailure(t *testing.T) {
	transient := NewProviderError("test", ErrorTypeServerError, 503, "overloaded", nil)
	core := &stubCore{
		model:    "m",
		response: "ok",
		errs:     []error{transient, transient, nil},
	}

	wrapped := RetryMiddleware(3, time.Millisecond, 10*time.Millisecond)(core)

	response, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", response)
	assert.Equal(t, 3, core.callCount())
}

func TestRetryMiddlewareStopsOnNonRetryableError(t *testing.T) {
	fatal := NewProviderError("test", ErrorTypeAuthentication, 401, "bad key", nil)
	core := &stubCore{model: "m", errs: []error{fatal, nil}}

	wrapped := RetryMiddleware(3, time.Millisecond, 10*time.Millisecond)(core)

	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	require.Error(t, err)
	assert.Equal(t, 1, core.callCount(), "authentication failures must not be retried")
}

func TestRetryMiddlewareExhaustsBudget(t *testing.T) {
	transient := NewProviderError("test", ErrorTypeRateLimit, 429, "slow down", nil)
	core := &stubCore{model: "m", errs: []error{transient, transient, transient, transient}}

	wrapped := RetryMiddleware(2, time.Millisecond, 5*time.Millisecond)(core)

	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, core.callCount())
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Hour)
	boom := errors.New("boom")

	require.Error(t, cb.Call(func() error { return boom }))
	assert.Equal(t, StateClosed, cb.GetState())

	require.Error(t, cb.Call(func() error { return boom }))
	assert.Equal(t, StateOpen, cb.GetState())

	err := cb.Call(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreakerRecoversAfterCooldown(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Millisecond)

	require.Error(t, cb.Call(func() error { return errors.New("boom") }))
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(5 * time.Millisecond)

	assert.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerMiddleware(t *testing.T) {
	core := &stubCore{model: "m", errs: []error{
		errors.New("one"), errors.New("two"), nil,
	}}
	wrapped := CircuitBreakerMiddleware(2, time.Hour)(core)

	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	require.Error(t, err)
	_, _, _, err = wrapped.DoRequest(context.Background(), "p", nil)
	require.Error(t, err)

	// Circuit is now open; the core must not be reached again.
	_, _, _, err = wrapped.DoRequest(context.Background(), "p", nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, core.callCount())
}

func TestTimeoutMiddleware(t *testing.T) {
	slow := &slowCore{delay: 50 * time.Millisecond}
	wrapped := TimeoutMiddleware(5 * time.Millisecond)(slow)

	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type slowCore struct {
	delay time.Duration
}

func (s *slowCore) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	select {
	case <-ctx.Done():
		return "", 0, 0, ctx.Err()
	case <-time.After(s.delay):
		return "late", 1, 1, nil
	}
}

func (s *slowCore) GetModel() string  { return "slow" }
func (s *slowCore) SetModel(m string) {}

func TestRateLimitMiddlewarePacesRequests(t *testing.T) {
	core := &stubCore{model: "m", response: "ok"}
	// 100 per second with burst 1 makes the second call wait ~10ms.
	wrapped := RateLimitMiddleware(100, 1)(core)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

type recordedMetric struct {
	name   string
	value  float64
	labels map[string]string
}

// recordingCollector captures counter and histogram recordings with
// copied label maps.
type recordingCollector struct {
	mu         sync.Mutex
	counters   []recordedMetric
	histograms []recordedMetric
}

func (rc *recordingCollector) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
}

func (rc *recordingCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.counters = append(rc.counters, recordedMetric{metric, value, copyLabels(labels)})
}

func (rc *recordingCollector) RecordGauge(metric string, value float64, labels map[string]string) {}

func (rc *recordingCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.histograms = append(rc.histograms, recordedMetric{metric, value, copyLabels(labels)})
}

func copyLabels(labels map[string]string) map[string]string {
	copied := make(map[string]string, len(labels))
	for k, v := range labels {
		copied[k] = v
	}
	return copied
}

func TestMetricsMiddlewareRecordsSuccess(t *testing.T) {
	collector := &recordingCollector{}
	core := &stubCore{model: "gpt-test", response: "ok"}
	wrapped := MetricsMiddleware(collector)(core)

	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	require.NoError(t, err)

	require.Len(t, collector.histograms, 1)
	latency := collector.histograms[0]
	assert.Equal(t, "llm_latency_seconds", latency.name)
	assert.Equal(t, "success", latency.labels["status"])
	assert.Equal(t, "openai", latency.labels["provider"])
	assert.Equal(t, "gpt-test", latency.labels["model"])

	require.Len(t, collector.counters, 3)
	assert.Equal(t, "llm_requests_total", collector.counters[0].name)

	tokens := map[string]float64{}
	for _, c := range collector.counters[1:] {
		assert.Equal(t, "llm_tokens_total", c.name)
		tokens[c.labels["token_type"]] = c.value
	}
	assert.Equal(t, map[string]float64{"input": 10, "output": 20}, tokens)
}

func TestMetricsMiddlewareRecordsFailureStatus(t *testing.T) {
	collector := &recordingCollector{}
	core := &stubCore{model: "claude-test", errs: []error{
		NewProviderError("test", ErrorTypeAuthentication, 401, "bad key", nil),
	}}
	wrapped := MetricsMiddleware(collector)(core)

	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	require.Error(t, err)

	require.Len(t, collector.counters, 1, "failed requests must not record token usage")
	assert.Equal(t, "llm_requests_total", collector.counters[0].name)
	assert.Equal(t, "error", collector.counters[0].labels["status"])
	assert.Equal(t, "anthropic", collector.counters[0].labels["provider"])
}

func TestMetricsMiddlewareNilCollector(t *testing.T) {
	core := &stubCore{model: "m", response: "ok"}
	wrapped := MetricsMiddleware(nil)(core)

	assert.NotPanics(t, func() {
		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		assert.NoError(t, err)
	})
}

func TestParseRequestOptions(t *testing.T) {
	options := ParseRequestOptions(map[string]any{
		"max_tokens":  500,
		"temperature": 0.2,
		"model":       "override",
		"top_k":       5,
	}, "default-model")

	assert.Equal(t, 500, options.MaxTokens)
	assert.Equal(t, "override", options.Model)
	require.NotNil(t, options.Temperature)
	assert.InDelta(t, 0.2, *options.Temperature, 1e-9)
	assert.Nil(t, options.TopP)
	assert.Equal(t, 5, options.Extra["top_k"])
}

func TestParseRequestOptionsDefaults(t *testing.T) {
	options := ParseRequestOptions(nil, "default-model")

	assert.Equal(t, DefaultMaxTokens, options.MaxTokens)
	assert.Equal(t, "default-model", options.Model)
	assert.Nil(t, options.Temperature)
	assert.Empty(t, options.System)
}

func TestParseRequestOptionsRejectsInvalidValues(t *testing.T) {
	options := ParseRequestOptions(map[string]any{
		"max_tokens":  -5,
		"temperature": 9.0,
		"model":       "",
	}, "default-model")

	assert.Equal(t, DefaultMaxTokens, options.MaxTokens)
	assert.Equal(t, "default-model", options.Model)
	assert.Nil(t, options.Temperature)
}

func TestExtractOptionalHelpers(t *testing.T) {
	opts := map[string]any{
		"int":      7,
		"intFloat": 8.0,
		"str":      "value",
		"float":    0.5,
	}

	assert.Equal(t, 7, ExtractOptionalInt(opts, "int", 1, IsPositiveInt))
	assert.Equal(t, 8, ExtractOptionalInt(opts, "intFloat", 1, IsPositiveInt))
	assert.Equal(t, 1, ExtractOptionalInt(opts, "missing", 1, IsPositiveInt))
	assert.Equal(t, "value", ExtractOptionalString(opts, "str", "d", IsNonEmptyString))
	assert.Equal(t, "d", ExtractOptionalString(opts, "int", "d", nil))
	assert.InDelta(t, 0.5, ExtractOptionalFloat64(opts, "float", -1, IsValidTemperature), 1e-9)
	assert.InDelta(t, -1, ExtractOptionalFloat64(opts, "missing", -1, nil), 1e-9)
}

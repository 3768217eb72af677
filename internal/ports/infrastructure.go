package ports

import (
	"context"
	"time"
)

// LLMClient defines the interface for interacting with Large Language
// Model providers. The description-to-PALD extractor consumes it to
// re-express free-text image descriptions as structured documents.
// Implementations handle provider-specific details like authentication,
// request formatting, and response parsing.
type LLMClient interface {
	// Complete sends a completion request to the LLM provider and
	// returns the generated text. The options map allows flexibility
	// for different providers without changing the interface. Common
	// options include:
	//   - "temperature": float64 (0.0-1.0)
	//   - "max_tokens": int
	//   - "model": string (specific model version)
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// EstimateTokens calculates the approximate token count for a given
	// text. Useful for staying within model limits; the estimation
	// method may vary by provider.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier being used by this client.
	GetModel() string
}

// CacheStore defines the interface for caching derived artifacts such
// as compressed prompts. Implementations could use Redis, Memcached,
// or in-memory storage. Caching is optional; the prompt compressor
// ships with its own bounded in-memory memo.
type CacheStore interface {
	// Get retrieves a cached value by key.
	Get(ctx context.Context, key string) (any, bool, error)

	// Set stores a value with an expiration time. A zero duration
	// means the item doesn't expire.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// MetricsCollector defines the interface for collecting operational
// metrics. Implementations should integrate with observability
// platforms like Prometheus or OpenTelemetry.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram, such as a
	// consistency score distribution.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

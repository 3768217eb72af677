package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCore is a scriptable CoreLLM for middleware tests.
type stubCore struct {
	mu       sync.Mutex
	model    string
	response string
	errs     []error
	calls    int
}

func (s *stubCore) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return "", 0, 0, err
		}
	}
	return s.response, 10, 20, nil
}

func (s *stubCore) GetModel() string { return s.model }

func (s *stubCore) SetModel(m string) { s.model = m }

func (s *stubCore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("openai", ClientConfig{})
	assert.ErrorIs(t, err, ErrEmptyAPIKey)

	_, err = NewClient("nonexistent", ClientConfig{APIKey: "key"})
	assert.Error(t, err)
}

func TestClientMiddlewareOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next CoreLLM) CoreLLM {
			return &taggedCore{next: next, name: name, order: &order}
		}
	}

	RegisterProviderFactory("stub", func(config ClientConfig) (CoreLLM, error) {
		return &stubCore{model: "stub-model", response: "ok"}, nil
	})

	client, err := NewClient("stub", ClientConfig{
		APIKey:     "key",
		Model:      "stub-model",
		Middleware: []Middleware{tag("outer"), tag("inner")},
	})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order,
		"first configured middleware must be outermost")
}

type taggedCore struct {
	next  CoreLLM
	name  string
	order *[]string
}

func (tc *taggedCore) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	*tc.order = append(*tc.order, tc.name)
	return tc.next.DoRequest(ctx, prompt, opts)
}

func (tc *taggedCore) GetModel() string  { return tc.next.GetModel() }
func (tc *taggedCore) SetModel(m string) { tc.next.SetModel(m) }

func TestTokenCounter(t *testing.T) {
	tc := NewTokenCounter()

	assert.Equal(t, 0, tc.EstimateTokens(""))
	assert.Equal(t, 3, tc.EstimateTokens("hello world!"))
	assert.Equal(t, 42, tc.GetTokenCount(42, "text"))
	assert.Equal(t, tc.EstimateTokens("text text"), tc.GetTokenCount(0, "text text"))
}

func TestProviderErrorRetryability(t *testing.T) {
	tests := []struct {
		errType   ErrorType
		retryable bool
	}{
		{ErrorTypeRateLimit, true},
		{ErrorTypeServerError, true},
		{ErrorTypeNetwork, true},
		{ErrorTypeTimeout, true},
		{ErrorTypeAuthentication, false},
		{ErrorTypeBadRequest, false},
		{ErrorTypeContentPolicy, false},
		{ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		err := NewProviderError("test", tt.errType, 0, "", nil)
		assert.Equal(t, tt.retryable, err.IsRetryable(), "type %d", tt.errType)
	}
}

func TestErrorClassifierHTTP(t *testing.T) {
	classifier := &ErrorClassifier{Provider: "test"}

	tests := []struct {
		status int
		want   ErrorType
	}{
		{401, ErrorTypeAuthentication},
		{403, ErrorTypeAuthentication},
		{429, ErrorTypeRateLimit},
		{400, ErrorTypeBadRequest},
		{404, ErrorTypeNotFound},
		{500, ErrorTypeServerError},
		{503, ErrorTypeServerError},
		{418, ErrorTypeBadRequest},
		{200, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		got := classifier.ClassifyHTTPError(tt.status, "msg", errors.New("raw"))
		assert.Equal(t, tt.want, got.Type, "status %d", tt.status)
		assert.Equal(t, tt.status, got.StatusCode)
	}
}

func TestErrorClassifierContext(t *testing.T) {
	classifier := &ErrorClassifier{Provider: "test"}

	assert.Equal(t, ErrorTypeTimeout, classifier.ClassifyContextError(context.DeadlineExceeded).Type)
	assert.Equal(t, ErrorTypeNetwork, classifier.ClassifyContextError(context.Canceled).Type)
}

// Package testutils provides deterministic test doubles for the
// consistency loop's collaborators.
package testutils

import (
	"context"
	"fmt"
	"strings"
)

// MockLLMClient implements the ports.LLMClient interface with
// deterministic responses selected by substring pattern matching.
type MockLLMClient struct {
	// model is the mock model identifier.
	model string
	// responses maps prompt patterns to canned responses.
	responses map[string]string
	// order preserves registration order so the longest-registered
	// matching pattern does not depend on map iteration.
	order []string
	// err, when set, fails every Complete call.
	err error
	// Calls records every prompt passed to Complete.
	Calls []string
}

// NewMockLLMClient creates a mock client with a default extraction
// response so extractor tests work out of the box.
func NewMockLLMClient(model string) *MockLLMClient {
	client := &MockLLMClient{
		model:     model,
		responses: make(map[string]string),
	}

	client.AddResponse("Restate", `{"pald_data": {"global_design_level": {"overall_appearance": "friendly teacher"}}, "confidence": 0.9}`)
	client.AddResponse("", `{"pald_data": {}, "confidence": 0.0}`)

	return client
}

// AddResponse registers a canned response for prompts containing the
// pattern. The empty pattern is the fallback.
func (m *MockLLMClient) AddResponse(pattern, response string) {
	if _, exists := m.responses[pattern]; !exists {
		m.order = append(m.order, pattern)
	}
	m.responses[pattern] = response
}

// FailWith makes every subsequent Complete call return err.
func (m *MockLLMClient) FailWith(err error) { m.err = err }

// Complete returns the canned response for the first registered
// pattern contained in the prompt.
func (m *MockLLMClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if m.err != nil {
		return "", m.err
	}
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	m.Calls = append(m.Calls, prompt)

	var fallback string
	for _, pattern := range m.order {
		if pattern == "" {
			fallback = m.responses[pattern]
			continue
		}
		if strings.Contains(prompt, pattern) {
			return m.responses[pattern], nil
		}
	}
	return fallback, nil
}

// EstimateTokens approximates four characters per token.
func (m *MockLLMClient) EstimateTokens(text string) (int, error) {
	return (len(text) + 3) / 4, nil
}

// GetModel returns the mock model identifier.
func (m *MockLLMClient) GetModel() string { return m.model }

package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/embodia/pald-loop/internal/ports"
)

// GenerationOutcome scripts one Generate call of the mock port.
type GenerationOutcome struct {
	// Image is returned when Err is nil.
	Image ports.GeneratedImage
	// Err fails the call.
	Err error
}

// MockGenerationPort implements ports.GenerationPort with a scripted
// sequence of outcomes. After the script runs out, calls keep
// returning the last outcome. Safe for concurrent use.
type MockGenerationPort struct {
	mu       sync.Mutex
	outcomes []GenerationOutcome
	calls    int
	// Prompts records every prompt passed to Generate.
	Prompts []string
}

// NewMockGenerationPort scripts the given outcomes in order. With no
// outcomes the port mints sequential image IDs.
func NewMockGenerationPort(outcomes ...GenerationOutcome) *MockGenerationPort {
	return &MockGenerationPort{outcomes: outcomes}
}

// Generate returns the next scripted outcome.
func (m *MockGenerationPort) Generate(ctx context.Context, prompt string, parameters map[string]any) (ports.GeneratedImage, error) {
	if ctx.Err() != nil {
		return ports.GeneratedImage{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.Prompts = append(m.Prompts, prompt)

	if len(m.outcomes) == 0 {
		id := fmt.Sprintf("mock-img-%d", m.calls)
		return ports.GeneratedImage{ID: id, Path: "/tmp/" + id + ".png"}, nil
	}

	idx := m.calls - 1
	if idx >= len(m.outcomes) {
		idx = len(m.outcomes) - 1
	}
	outcome := m.outcomes[idx]
	return outcome.Image, outcome.Err
}

// Calls reports how many times Generate ran.
func (m *MockGenerationPort) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// DescriptionOutcome scripts one Describe call of the mock port.
type DescriptionOutcome struct {
	// Description is returned when Err is nil.
	Description string
	// Err fails the call.
	Err error
}

// MockDescriptionPort implements ports.DescriptionPort with a scripted
// sequence of outcomes. After the script runs out, calls keep
// returning the last outcome. Safe for concurrent use.
type MockDescriptionPort struct {
	mu       sync.Mutex
	outcomes []DescriptionOutcome
	calls    int
	// Paths records every image path passed to Describe.
	Paths []string
}

// NewMockDescriptionPort scripts the given outcomes in order. With no
// outcomes the port returns a generic description.
func NewMockDescriptionPort(outcomes ...DescriptionOutcome) *MockDescriptionPort {
	return &MockDescriptionPort{outcomes: outcomes}
}

// Describe returns the next scripted outcome.
func (m *MockDescriptionPort) Describe(ctx context.Context, imagePath string, focusOnEmbodiment bool) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.Paths = append(m.Paths, imagePath)

	if len(m.outcomes) == 0 {
		return "a friendly professional teacher with brown hair and glasses", nil
	}

	idx := m.calls - 1
	if idx >= len(m.outcomes) {
		idx = len(m.outcomes) - 1
	}
	outcome := m.outcomes[idx]
	return outcome.Description, outcome.Err
}

// Calls reports how many times Describe ran.
func (m *MockDescriptionPort) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

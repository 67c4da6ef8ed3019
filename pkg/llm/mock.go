package llm

import (
	"context"
	"sync"
	"sync/atomic"
)

// MockTextGenerator is a configurable TextGenerator for tests.
// Set GenerateFunc to control behavior. Safe for concurrent use.
type MockTextGenerator struct {
	// GenerateFunc is called when Generate is invoked.
	// If nil, returns an empty string and nil error.
	GenerateFunc func(ctx context.Context, prompt string, systemMessage string, params GenerationParams) (string, error)

	// Model is returned by ModelID. Defaults to "mock-model".
	Model string

	calls   atomic.Int64
	mu      sync.Mutex
	prompts []string
}

// NewMockTextGenerator creates a mock that answers every call with fn.
func NewMockTextGenerator(fn func(ctx context.Context, prompt string, systemMessage string, params GenerationParams) (string, error)) *MockTextGenerator {
	return &MockTextGenerator{GenerateFunc: fn, Model: "mock-model"}
}

// Generate implements TextGenerator.
func (m *MockTextGenerator) Generate(ctx context.Context, prompt string, systemMessage string, params GenerationParams) (string, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, systemMessage, params)
	}
	return "", nil
}

// ModelID implements TextGenerator.
func (m *MockTextGenerator) ModelID() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// Calls returns the number of Generate invocations.
func (m *MockTextGenerator) Calls() int {
	return int(m.calls.Load())
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockTextGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Reset clears call tracking.
func (m *MockTextGenerator) Reset() {
	m.calls.Store(0)
	m.mu.Lock()
	m.prompts = nil
	m.mu.Unlock()
}

var _ TextGenerator = (*MockTextGenerator)(nil)

package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/poiesic/examscribe/ai"
)

// MockGenerator is a test double for ai.Generator.
// Every prompt it receives is recorded for later inspection.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, returns a deterministic answer derived from the prompt.
	GenerateFunc func(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error)

	mu      sync.Mutex
	prompts []string
	options []ai.GenerateOptions
}

// NewMockGenerator creates a mock generator with default deterministic behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate records the call and returns the injected or default completion.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.options = append(m.options, opts)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, opts)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	h := fnv.New32a()
	h.Write([]byte(prompt))
	return fmt.Sprintf("Mock answer %08x", h.Sum32()), nil
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Options returns a copy of every option set received, in call order.
func (m *MockGenerator) Options() []ai.GenerateOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.GenerateOptions(nil), m.options...)
}

// Reset clears recorded calls and injected behavior.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = nil
	m.options = nil
	m.GenerateFunc = nil
}

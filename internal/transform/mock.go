package transform

import (
	"context"
	"os"
	"sync"
)

var _ Transformer = (*MockTransformer)(nil)

// MockTransformer records Apply calls and writes a fixed payload to the
// output path so downstream code sees a non-empty file. Used in tests.
type MockTransformer struct {
	mu       sync.Mutex
	requests []Request

	// Err, when set, is returned without touching the output file.
	Err error

	// Output is the payload written on success.
	Output []byte
}

func NewMockTransformer() *MockTransformer {
	return &MockTransformer{Output: []byte("transformed")}
}

func (m *MockTransformer) Apply(ctx context.Context, req Request) error {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	err := m.Err
	output := m.Output
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return os.WriteFile(req.OutputPath, output, 0o644)
}

// Requests returns a copy of every Apply call seen so far.
func (m *MockTransformer) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// CallCount returns how many times Apply ran.
func (m *MockTransformer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

package engine

import (
	"context"
	"sync"
)

// MockResolver is a test implementation of the Resolver interface.
// It answers with a default decision unless a per-invoice answer is set.
type MockResolver struct {
	err        error
	answers    map[string]bool
	calls      []MockResolveCall
	mu         sync.Mutex
	autoAccept bool
}

// MockResolveCall records details of a single resolve request.
type MockResolveCall struct {
	Match    AmbiguousMatch
	Accepted bool
}

// NewMockResolver creates a new mock resolver.
func NewMockResolver(autoAccept bool) *MockResolver {
	return &MockResolver{
		answers:    make(map[string]bool),
		calls:      make([]MockResolveCall, 0),
		autoAccept: autoAccept,
	}
}

// Resolve returns the configured answer for the invoice nameDose.
func (m *MockResolver) Resolve(ctx context.Context, match AmbiguousMatch) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if m.err != nil {
		return false, m.err
	}

	accept := m.autoAccept
	if answer, ok := m.answers[match.Invoice.NameDose]; ok {
		accept = answer
	}

	m.calls = append(m.calls, MockResolveCall{Match: match, Accepted: accept})
	return accept, nil
}

// SetAnswer sets the decision for candidates from the given invoice nameDose.
func (m *MockResolver) SetAnswer(invoiceNameDose string, accept bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers[invoiceNameDose] = accept
}

// SetError makes every following call fail with err.
func (m *MockResolver) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns all recorded resolve calls.
func (m *MockResolver) Calls() []MockResolveCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]MockResolveCall, len(m.calls))
	copy(out, m.calls)
	return out
}

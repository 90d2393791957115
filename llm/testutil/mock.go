// Package testutil provides fakes for code that talks to the llm
// client.
package testutil

import (
	"context"
	"sync"

	"github.com/metacogma/edc-rule-validator-sub000/llm"
)

// MockLLMClient satisfies the Completer contract used by collaborator
// code. Configure Responses to script replies in order, or Err to make
// every call fail. Safe for concurrent use.
type MockLLMClient struct {
	// Responses are returned one per call, in order. Calls past the
	// end get an empty response rather than an error.
	Responses []*llm.Response

	// Err, when set, is returned from every call and wins over
	// Responses.
	Err error

	mu       sync.Mutex
	calls    int
	next     int
	lastCtx  context.Context
	requests []llm.Request
}

// Complete returns the next scripted response.
func (m *MockLLMClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.lastCtx = ctx
	m.requests = append(m.requests, req)

	if m.Err != nil {
		return nil, m.Err
	}
	if m.next < len(m.Responses) {
		resp := m.Responses[m.next]
		m.next++
		return resp, nil
	}
	return &llm.Response{Model: "test-model"}, nil
}

// GetCallCount reports how many times Complete ran.
func (m *MockLLMClient) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// GetCapturedContext returns the context of the most recent call.
func (m *MockLLMClient) GetCapturedContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCtx
}

// Requests returns a copy of every request seen so far.
func (m *MockLLMClient) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// Reset clears call history so the mock can be reused across cases.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = 0
	m.next = 0
	m.lastCtx = nil
	m.requests = nil
}

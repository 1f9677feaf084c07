package helpers

import (
	"context"
	"sync"

	"github.com/kode4food/flowrelay/internal/client"
	"github.com/kode4food/flowrelay/pkg/api"
)

type (
	// MockExecutor replays scripted results in order. Once the script is
	// exhausted the final result repeats
	MockExecutor struct {
		results []ExecResult
		calls   []ExecCall
		onPost  func(context.Context, int)
		mu      sync.Mutex
	}

	// ExecResult is one scripted outcome of Post
	ExecResult struct {
		Response api.RunResponse
		Err      error
	}

	// ExecCall records the arguments of one Post
	ExecCall struct {
		URL  string
		Body any
	}
)

var _ client.Executor = (*MockExecutor)(nil)

// NewMockExecutor creates an executor that returns results in order
func NewMockExecutor(results ...ExecResult) *MockExecutor {
	return &MockExecutor{results: results}
}

// Respond is a successful result carrying raw JSON
func Respond(body string) ExecResult {
	return ExecResult{Response: api.RunResponse(body)}
}

// Fail is a failed result
func Fail(err error) ExecResult {
	return ExecResult{Err: err}
}

// OnPost installs a hook run at the start of each call with its 1-based
// index
func (m *MockExecutor) OnPost(fn func(ctx context.Context, call int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPost = fn
}

// Post records the call and returns the next scripted result
func (m *MockExecutor) Post(
	ctx context.Context, url string, body any,
) (api.RunResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ExecCall{URL: url, Body: body})
	n := len(m.calls)
	hook := m.onPost
	var res ExecResult
	if len(m.results) > 0 {
		idx := min(n, len(m.results)) - 1
		res = m.results[idx]
	}
	m.mu.Unlock()

	if hook != nil {
		hook(ctx, n)
	}
	return res.Response, res.Err
}

// Calls returns every recorded call
func (m *MockExecutor) Calls() []ExecCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecCall(nil), m.calls...)
}

// CallCount returns the number of calls made
func (m *MockExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

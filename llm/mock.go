package llm

import "context"

// MockCompleter is a scripted Completer for tests. Each call pops the
// next queued response; Requests records every request it saw.
type MockCompleter struct {
	Responses []*Response
	Errs      []error
	Requests  []Request

	// CompleteFunc overrides the scripted behavior entirely when set.
	CompleteFunc func(ctx context.Context, req Request) (*Response, error)

	calls int
}

func (m *MockCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	m.Requests = append(m.Requests, req)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	i := m.calls
	m.calls++
	if i < len(m.Errs) && m.Errs[i] != nil {
		return nil, m.Errs[i]
	}
	if i < len(m.Responses) {
		return m.Responses[i], nil
	}
	return &Response{Text: "ok"}, nil
}

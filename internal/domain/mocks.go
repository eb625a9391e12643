package domain

import (
	"context"
)

// MockClient scripts one Trigger result and a sequence of Status
// results. When the status script runs out the last entry repeats.
type MockClient struct {
	Handle     RunHandle
	TriggerErr error

	Statuses   []PipelineStatus
	StatusErrs []error

	TriggerCalls int
	StatusCalls  int
}

func (m *MockClient) Trigger(ctx context.Context, w Workflow) (RunHandle, error) {
	m.TriggerCalls++
	if m.TriggerErr != nil {
		return RunHandle{}, m.TriggerErr
	}
	h := m.Handle
	h.Workflow = w
	return h, nil
}

func (m *MockClient) Status(ctx context.Context, h RunHandle) (PipelineStatus, error) {
	i := m.StatusCalls
	m.StatusCalls++
	if i < len(m.StatusErrs) && m.StatusErrs[i] != nil {
		return StatusUnknown, m.StatusErrs[i]
	}
	if len(m.Statuses) == 0 {
		return StatusUnknown, nil
	}
	if i >= len(m.Statuses) {
		i = len(m.Statuses) - 1
	}
	return m.Statuses[i], nil
}

type MockNotifier struct {
	Messages []string
	Err      error
}

func (n *MockNotifier) Notify(ctx context.Context, title, body, url string) error {
	n.Messages = append(n.Messages, title+"|"+body+"|"+url)
	return n.Err
}

type MockReporter struct {
	Batches []BatchResult
	Err     error
}

func (r *MockReporter) Write(ctx context.Context, b BatchResult) error {
	if r.Err != nil {
		return r.Err
	}
	r.Batches = append(r.Batches, b)
	return nil
}

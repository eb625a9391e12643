package domain

import "context"

type PipelineClient interface {
	Trigger(ctx context.Context, w Workflow) (RunHandle, error)
	Status(ctx context.Context, h RunHandle) (PipelineStatus, error)
}

type Notifier interface {
	Notify(ctx context.Context, title, body, url string) error
}

type RunReporter interface {
	Write(ctx context.Context, b BatchResult) error
}

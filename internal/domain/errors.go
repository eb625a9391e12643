package domain

import (
	"fmt"
	"time"
)

// TriggerError means the platform rejected or could not start the run.
// A failed trigger is final: this layer never retries it.
type TriggerError struct {
	Workflow string
	Err      error
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("trigger %s: %v", e.Workflow, e.Err)
}

func (e *TriggerError) Unwrap() error { return e.Err }

// StatusError is a failed status query. It says nothing about the
// pipeline itself; polling treats it as transient.
type StatusError struct {
	Workflow string
	Err      error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %s: %v", e.Workflow, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// TimeoutError means no terminal status was observed within the window.
// The remote run may still be going; we only stopped watching.
type TimeoutError struct {
	Workflow string
	Last     PipelineStatus
	After    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no terminal status after %s (last %q)", e.Workflow, e.After, e.Last)
}

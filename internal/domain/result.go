package domain

import "time"

type Result string

const (
	ResultSkipped       Result = "skipped"
	ResultTriggerFailed Result = "trigger_failed"
	ResultSucceeded     Result = "succeeded"
	// ResultTriggered means waiting was disabled: the trigger was
	// accepted but pipeline completion is unverified.
	ResultTriggered Result = "triggered"
	ResultFailed    Result = "failed"
	ResultTimedOut  Result = "timed_out"
)

type SkipReason string

const (
	SkipDisabled     SkipReason = "disabled"
	SkipUpstreamStop SkipReason = "upstream stop"
	SkipMissingToken SkipReason = "missing token"
)

// Outcome is the terminal record for one workflow of the batch.
type Outcome struct {
	Workflow   Workflow
	Result     Result
	SkipReason SkipReason
	Status     PipelineStatus
	WebURL     string
	Err        error
}

// Failed reports whether this outcome counts against the batch.
// Skips other than "upstream stop" do not: a disabled workflow or a
// platform without credentials was never supposed to run.
func (o Outcome) Failed() bool {
	switch o.Result {
	case ResultTriggerFailed, ResultFailed, ResultTimedOut:
		return true
	case ResultSkipped:
		return o.SkipReason == SkipUpstreamStop
	}
	return false
}

type BatchResult struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome
}

func (b BatchResult) AllSucceeded() bool {
	for _, o := range b.Outcomes {
		if o.Failed() {
			return false
		}
	}
	return true
}

func (b BatchResult) ExitCode() int {
	if b.AllSucceeded() {
		return 0
	}
	return 1
}

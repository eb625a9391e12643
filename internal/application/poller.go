package application

import (
	"context"
	"time"

	"github.com/davarch/ci-dispatch/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultTimeout  = 3600 * time.Second
)

// Poller watches one triggered run until it reaches a terminal status
// or the timeout window closes. It never cancels the remote run.
type Poller struct {
	log      *zap.Logger
	interval time.Duration
	timeout  time.Duration
}

func NewPoller(log *zap.Logger, interval, timeout time.Duration) *Poller {
	if interval <= 0 {
		log.Warn("non-positive check interval, using default",
			zap.Duration("interval", interval),
			zap.Duration("default", DefaultInterval),
		)
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Poller{log: log, interval: interval, timeout: timeout}
}

// WaitForTerminal polls the run status every interval. A failed status
// query is logged and polling continues; only the deadline ends it.
// The deadline is checked before and after each sleep so no status
// call is ever issued past the boundary.
func (p *Poller) WaitForTerminal(ctx context.Context, client domain.PipelineClient, h domain.RunHandle) (domain.PipelineStatus, error) {
	deadline := time.Now().Add(p.timeout)
	last := domain.StatusUnknown

	for {
		st, err := client.Status(ctx, h)
		if err != nil {
			p.log.Warn("status check failed",
				zap.String("workflow", h.Workflow.Name),
				zap.Int64("run", h.RunID),
				zap.Error(err),
			)
		} else {
			if st.Terminal() {
				return st, nil
			}
			last = st
			p.log.Debug("still waiting",
				zap.String("workflow", h.Workflow.Name),
				zap.Int64("run", h.RunID),
				zap.String("status", string(st)),
			)
		}

		if !time.Now().Before(deadline) {
			return last, &domain.TimeoutError{Workflow: h.Workflow.Name, Last: last, After: p.timeout}
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(p.interval):
		}

		if !time.Now().Before(deadline) {
			return last, &domain.TimeoutError{Workflow: h.Workflow.Name, Last: last, After: p.timeout}
		}
	}
}

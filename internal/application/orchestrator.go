package application

import (
	"context"
	"strconv"
	"time"

	"github.com/davarch/ci-dispatch/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options are the already-parsed run settings from flags and config.
type Options struct {
	Wait            bool
	ContinueOnError bool
}

// Orchestrator walks the workflow list strictly in order, one at a
// time. Pipelines may depend on each other (a deploy expecting a prior
// build), so two workflows are never in flight concurrently.
type Orchestrator struct {
	log     *zap.Logger
	clients map[domain.Platform]domain.PipelineClient
	poller  *Poller
	opts    Options

	note   domain.Notifier    // optional
	report domain.RunReporter // optional
}

func NewOrchestrator(log *zap.Logger, clients map[domain.Platform]domain.PipelineClient, poller *Poller, opts Options) *Orchestrator {
	return &Orchestrator{log: log, clients: clients, poller: poller, opts: opts}
}

func (o *Orchestrator) WithNotifier(n domain.Notifier) *Orchestrator {
	o.note = n
	return o
}

func (o *Orchestrator) WithReporter(r domain.RunReporter) *Orchestrator {
	o.report = r
	return o
}

// Run executes the batch and returns one Outcome per workflow, in
// declaration order. Every network-facing error is folded into an
// outcome; Run itself never fails.
func (o *Orchestrator) Run(ctx context.Context, workflows []domain.Workflow) domain.BatchResult {
	batch := domain.BatchResult{
		ID:       uuid.NewString(),
		Started:  time.Now(),
		Outcomes: make([]domain.Outcome, 0, len(workflows)),
	}

	stopped := false
	for _, w := range workflows {
		var out domain.Outcome
		switch {
		case stopped:
			out = domain.Outcome{Workflow: w, Result: domain.ResultSkipped, SkipReason: domain.SkipUpstreamStop}
		case !w.Enabled:
			out = domain.Outcome{Workflow: w, Result: domain.ResultSkipped, SkipReason: domain.SkipDisabled}
		default:
			out = o.runOne(ctx, w)
		}

		batch.Outcomes = append(batch.Outcomes, out)
		o.record(ctx, out)

		if out.Failed() && !o.opts.ContinueOnError {
			stopped = true
		}
	}
	batch.Finished = time.Now()

	if o.report != nil {
		if err := o.report.Write(ctx, batch); err != nil {
			o.log.Warn("report write failed", zap.Error(err))
		}
	}

	return batch
}

func (o *Orchestrator) runOne(ctx context.Context, w domain.Workflow) domain.Outcome {
	client, ok := o.clients[w.Platform]
	if !ok {
		o.log.Warn("no credentials for platform, skipping",
			zap.String("workflow", w.Name),
			zap.String("platform", string(w.Platform)),
		)
		return domain.Outcome{Workflow: w, Result: domain.ResultSkipped, SkipReason: domain.SkipMissingToken}
	}

	o.log.Info("triggering",
		zap.String("workflow", w.Name),
		zap.String("platform", string(w.Platform)),
		zap.String("target", w.Target()),
	)

	h, err := client.Trigger(ctx, w)
	if err != nil {
		return domain.Outcome{Workflow: w, Result: domain.ResultTriggerFailed, Err: err}
	}

	if !o.opts.Wait {
		return domain.Outcome{Workflow: w, Result: domain.ResultTriggered, WebURL: h.WebURL}
	}

	st, err := o.poller.WaitForTerminal(ctx, client, h)
	if err != nil {
		return domain.Outcome{Workflow: w, Result: domain.ResultTimedOut, Status: st, WebURL: h.WebURL, Err: err}
	}

	out := domain.Outcome{Workflow: w, Status: st, WebURL: h.WebURL}
	if st == domain.StatusSucceeded {
		out.Result = domain.ResultSucceeded
	} else {
		// cancelled counts as failed
		out.Result = domain.ResultFailed
	}
	return out
}

func (o *Orchestrator) record(ctx context.Context, out domain.Outcome) {
	fields := []zap.Field{
		zap.String("workflow", out.Workflow.Name),
		zap.String("result", string(out.Result)),
	}
	if out.SkipReason != "" {
		fields = append(fields, zap.String("reason", string(out.SkipReason)))
	}
	if out.Status != "" {
		fields = append(fields, zap.String("status", string(out.Status)))
	}
	if out.WebURL != "" {
		fields = append(fields, zap.String("url", out.WebURL))
	}
	if out.Err != nil {
		fields = append(fields, zap.Error(out.Err))
	}
	if out.Failed() {
		o.log.Warn("workflow done", fields...)
	} else {
		o.log.Info("workflow done", fields...)
	}

	if o.note != nil && out.Result != domain.ResultSkipped {
		_ = o.note.Notify(ctx, titleFor(out.Result), bodyFor(out), out.WebURL)
	}
}

func titleFor(r domain.Result) string {
	switch r {
	case domain.ResultSucceeded:
		return "✅ CI: succeeded"
	case domain.ResultTriggered:
		return "▶️ CI: triggered"
	case domain.ResultFailed:
		return "❌ CI: failed"
	case domain.ResultTimedOut:
		return "⏱️ CI: timed out"
	case domain.ResultTriggerFailed:
		return "❌ CI: trigger failed"
	default:
		return "ℹ️ CI: " + string(r)
	}
}

func bodyFor(out domain.Outcome) string {
	b := out.Workflow.Name + " (" + out.Workflow.Target() + ")"
	if out.Status != "" {
		b += " " + strconv.Quote(string(out.Status))
	}
	return b
}

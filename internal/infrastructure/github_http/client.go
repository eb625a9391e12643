package github_http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/davarch/ci-dispatch/internal/domain"
)

const DefaultBaseURL = "https://api.github.com"

type Client struct {
	baseUrl string
	token   string
	hc      *http.Client
}

func New(baseUrl string, token string, timeout time.Duration) *Client {
	if baseUrl == "" {
		baseUrl = DefaultBaseURL
	}

	tr := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseUrl: trimSlash(baseUrl),
		token:   token,
		hc:      &http.Client{Transport: tr, Timeout: timeout},
	}
}

type runDTO struct {
	ID         int64     `json:"id"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	HeadBranch string    `json:"head_branch"`
	HTMLURL    string    `json:"html_url"`
	CreatedAt  time.Time `json:"created_at"`
}

type runListDTO struct {
	TotalCount   int      `json:"total_count"`
	WorkflowRuns []runDTO `json:"workflow_runs"`
}

// Trigger dispatches the workflow and then locates the run it started.
// The dispatch endpoint answers 204 with no run id, so the newest
// workflow_dispatch run on the ref created at or after the dispatch is
// taken as ours. The POST itself is issued exactly once.
func (c *Client) Trigger(ctx context.Context, w domain.Workflow) (domain.RunHandle, error) {
	dispatchedAt := time.Now().Add(-2 * time.Second) // clock skew margin

	url := fmt.Sprintf("%s/repos/%s/actions/workflows/%s/dispatches",
		c.baseUrl, w.GitHub.Repo, w.GitHub.WorkflowFile)
	body, _ := json.Marshal(map[string]string{"ref": w.GitHub.Ref})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.RunHandle{}, &domain.TriggerError{Workflow: w.Name, Err: err}
	}
	c.auth(req)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return domain.RunHandle{}, &domain.TriggerError{Workflow: w.Name, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.RunHandle{}, &domain.TriggerError{
			Workflow: w.Name,
			Err:      fmt.Errorf("github %s: %s", resp.Status, bytes.TrimSpace(msg)),
		}
	}

	run, err := c.findDispatchedRun(ctx, w, dispatchedAt)
	if err != nil {
		// Dispatch was accepted; without a run id the handle still
		// lets the poller fall back to the workflow's newest run.
		return domain.RunHandle{Workflow: w}, nil
	}

	return domain.RunHandle{Workflow: w, RunID: run.ID, WebURL: run.HTMLURL}, nil
}

// findDispatchedRun retries briefly because the run appears a moment
// after the dispatch is acknowledged.
func (c *Client) findDispatchedRun(ctx context.Context, w domain.Workflow, since time.Time) (runDTO, error) {
	var out runDTO

	op := func() error {
		run, err := c.latestRun(ctx, w)
		if err != nil {
			return err
		}
		if run.ID == 0 || run.CreatedAt.Before(since) {
			return fmt.Errorf("dispatched run not visible yet")
		}
		out = run
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 10 * time.Second

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return runDTO{}, err
	}
	return out, nil
}

func (c *Client) latestRun(ctx context.Context, w domain.Workflow) (runDTO, error) {
	url := fmt.Sprintf("%s/repos/%s/actions/workflows/%s/runs?branch=%s&event=workflow_dispatch&per_page=1",
		c.baseUrl, w.GitHub.Repo, w.GitHub.WorkflowFile, w.GitHub.Ref)

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	c.auth(req)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return runDTO{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return runDTO{}, backoff.Permanent(fmt.Errorf("github %s", resp.Status))
	}

	var list runListDTO
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return runDTO{}, err
	}
	if len(list.WorkflowRuns) == 0 {
		return runDTO{}, nil
	}
	return list.WorkflowRuns[0], nil
}

// Status queries one run. Transient 429/5xx answers are retried with a
// short backoff inside the single query.
func (c *Client) Status(ctx context.Context, h domain.RunHandle) (domain.PipelineStatus, error) {
	var out domain.PipelineStatus

	op := func() error {
		run, err := c.getRun(ctx, h)
		if err != nil {
			return err
		}
		out = mapStatus(run.Status, run.Conclusion)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 300 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 5 * time.Second

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return domain.StatusUnknown, &domain.StatusError{Workflow: h.Workflow.Name, Err: err}
	}
	return out, nil
}

func (c *Client) getRun(ctx context.Context, h domain.RunHandle) (runDTO, error) {
	if h.RunID == 0 {
		// run id was never resolved, watch the workflow's newest run
		return c.latestRun(ctx, h.Workflow)
	}

	url := fmt.Sprintf("%s/repos/%s/actions/runs/%d", c.baseUrl, h.Workflow.GitHub.Repo, h.RunID)

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	c.auth(req)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return runDTO{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return runDTO{}, fmt.Errorf("github %s", resp.Status)
	}
	if resp.StatusCode >= 300 {
		return runDTO{}, backoff.Permanent(fmt.Errorf("github %s", resp.Status))
	}

	var run runDTO
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return runDTO{}, err
	}
	return run, nil
}

func (c *Client) auth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

func mapStatus(status, conclusion string) domain.PipelineStatus {
	switch status {
	case "queued", "waiting", "pending", "requested":
		return domain.StatusQueued
	case "in_progress":
		return domain.StatusRunning
	case "completed":
		switch conclusion {
		case "success":
			return domain.StatusSucceeded
		case "cancelled":
			return domain.StatusCancelled
		case "failure", "timed_out", "startup_failure":
			return domain.StatusFailed
		default:
			return domain.StatusUnknown
		}
	default:
		return domain.StatusUnknown
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

package azure_http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/davarch/ci-dispatch/internal/domain"
)

const (
	DefaultBaseURL = "https://dev.azure.com"
	apiVersion     = "7.0"
)

type Client struct {
	baseUrl string
	basic   string
	hc      *http.Client
}

// New takes the already-encoded basic credential, see EncodePAT.
func New(baseUrl string, basic string, timeout time.Duration) *Client {
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
		basic:   basic,
		hc:      &http.Client{Transport: tr, Timeout: timeout},
	}
}

// EncodePAT turns a personal access token into the basic-auth value
// Azure DevOps expects (empty user, PAT as password).
func EncodePAT(pat string) string {
	return base64.StdEncoding.EncodeToString([]byte(":" + pat))
}

type runDTO struct {
	ID     int64  `json:"id"`
	State  string `json:"state"`
	Result string `json:"result"`
	Links  struct {
		Web struct {
			Href string `json:"href"`
		} `json:"web"`
	} `json:"_links"`
}

func (c *Client) Trigger(ctx context.Context, w domain.Workflow) (domain.RunHandle, error) {
	url := fmt.Sprintf("%s/%s/%s/_apis/pipelines/%d/runs?api-version=%s",
		c.baseUrl, w.Azure.Organization, w.Azure.Project, w.Azure.PipelineID, apiVersion)

	body, _ := json.Marshal(map[string]any{
		"resources": map[string]any{
			"repositories": map[string]any{
				"self": map[string]string{"refName": "refs/heads/" + w.Azure.Branch},
			},
		},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.RunHandle{}, &domain.TriggerError{Workflow: w.Name, Err: err}
	}
	c.auth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return domain.RunHandle{}, &domain.TriggerError{Workflow: w.Name, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.RunHandle{}, &domain.TriggerError{
			Workflow: w.Name,
			Err:      fmt.Errorf("azure %s: %s", resp.Status, bytes.TrimSpace(msg)),
		}
	}

	var run runDTO
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return domain.RunHandle{}, &domain.TriggerError{Workflow: w.Name, Err: err}
	}

	return domain.RunHandle{Workflow: w, RunID: run.ID, WebURL: run.Links.Web.Href}, nil
}

func (c *Client) Status(ctx context.Context, h domain.RunHandle) (domain.PipelineStatus, error) {
	var out domain.PipelineStatus

	op := func() error {
		url := fmt.Sprintf("%s/%s/%s/_apis/pipelines/%d/runs/%d?api-version=%s",
			c.baseUrl, h.Workflow.Azure.Organization, h.Workflow.Azure.Project,
			h.Workflow.Azure.PipelineID, h.RunID, apiVersion)

		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		c.auth(req)

		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("azure %s", resp.Status)
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("azure %s", resp.Status))
		}

		var run runDTO
		if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
			return err
		}
		out = mapStatus(run.State, run.Result)
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

func (c *Client) auth(req *http.Request) {
	req.Header.Set("Authorization", "Basic "+c.basic)
}

func mapStatus(state, result string) domain.PipelineStatus {
	switch state {
	case "inProgress", "canceling":
		return domain.StatusRunning
	case "completed":
		switch result {
		case "succeeded":
			return domain.StatusSucceeded
		case "failed":
			return domain.StatusFailed
		case "canceled":
			return domain.StatusCancelled
		default:
			return domain.StatusUnknown
		}
	case "unknown":
		return domain.StatusQueued
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

package report_fs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/davarch/ci-dispatch/internal/domain"
)

// FSReporter writes the last batch result as JSON, for scripts and
// status bars to pick up.
type FSReporter struct {
	path string
}

func New(path string) *FSReporter { return &FSReporter{path: path} }

func (r *FSReporter) Write(_ context.Context, b domain.BatchResult) error {
	if r.path == "" {
		return errors.New("report path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(r.path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	type outcomeOut struct {
		Workflow string `json:"workflow"`
		Platform string `json:"platform"`
		Result   string `json:"result"`
		Reason   string `json:"reason,omitempty"`
		Status   string `json:"status,omitempty"`
		URL      string `json:"url,omitempty"`
		Error    string `json:"error,omitempty"`
	}
	type out struct {
		Batch        string       `json:"batch"`
		Started      int64        `json:"started"`
		Finished     int64        `json:"finished"`
		AllSucceeded bool         `json:"all_succeeded"`
		Outcomes     []outcomeOut `json:"outcomes"`
	}

	rep := out{
		Batch:        b.ID,
		Started:      b.Started.Unix(),
		Finished:     b.Finished.Unix(),
		AllSucceeded: b.AllSucceeded(),
	}
	for _, o := range b.Outcomes {
		oo := outcomeOut{
			Workflow: o.Workflow.Name,
			Platform: string(o.Workflow.Platform),
			Result:   string(o.Result),
			Reason:   string(o.SkipReason),
			Status:   string(o.Status),
			URL:      o.WebURL,
		}
		if o.Err != nil {
			oo.Error = o.Err.Error()
		}
		rep.Outcomes = append(rep.Outcomes, oo)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")

	return enc.Encode(rep)
}

package report_fs

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/davarch/ci-dispatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_CreatesReportFile(t *testing.T) {
	path := t.TempDir() + "/last_run.json"

	b := domain.BatchResult{
		ID:       "batch-1",
		Started:  time.Unix(100, 0),
		Finished: time.Unix(160, 0),
		Outcomes: []domain.Outcome{
			{
				Workflow: domain.Workflow{Platform: domain.PlatformGitHub, Name: "build"},
				Result:   domain.ResultSucceeded,
				Status:   domain.StatusSucceeded,
			},
			{
				Workflow:   domain.Workflow{Platform: domain.PlatformAzure, Name: "deploy"},
				Result:     domain.ResultSkipped,
				SkipReason: domain.SkipUpstreamStop,
			},
		},
	}

	require.NoError(t, New(path).Write(context.Background(), b))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var rep struct {
		Batch        string `json:"batch"`
		AllSucceeded bool   `json:"all_succeeded"`
		Outcomes     []struct {
			Workflow string `json:"workflow"`
			Result   string `json:"result"`
			Reason   string `json:"reason"`
		} `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal(raw, &rep))

	assert.Equal(t, "batch-1", rep.Batch)
	assert.False(t, rep.AllSucceeded)
	require.Len(t, rep.Outcomes, 2)
	assert.Equal(t, "build", rep.Outcomes[0].Workflow)
	assert.Equal(t, "upstream stop", rep.Outcomes[1].Reason)
}

func TestWrite_EmptyPathFails(t *testing.T) {
	assert.Error(t, New("").Write(context.Background(), domain.BatchResult{}))
}

package azure_http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/davarch/ci-dispatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorkflow() domain.Workflow {
	return domain.Workflow{
		Platform: domain.PlatformAzure,
		Name:     "deploy",
		Enabled:  true,
		Azure:    domain.AzureRef{Organization: "acme", Project: "infra", PipelineID: 12, Branch: "release"},
	}
}

func TestEncodePAT(t *testing.T) {
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte(":secret")), EncodePAT("secret"))
}

func TestTrigger_RunsPipeline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/acme/infra/_apis/pipelines/12/runs", r.URL.Path)
		assert.Equal(t, "7.0", r.URL.Query().Get("api-version"))
		assert.Equal(t, "Basic "+EncodePAT("pat"), r.Header.Get("Authorization"))

		var body struct {
			Resources struct {
				Repositories struct {
					Self struct {
						RefName string `json:"refName"`
					} `json:"self"`
				} `json:"repositories"`
			} `json:"resources"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refs/heads/release", body.Resources.Repositories.Self.RefName)

		fmt.Fprint(w, `{"id":42,"state":"inProgress","_links":{"web":{"href":"https://dev.azure.test/run/42"}}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, EncodePAT("pat"), 5*time.Second)
	h, err := c.Trigger(context.Background(), testWorkflow())
	require.NoError(t, err)
	assert.Equal(t, int64(42), h.RunID)
	assert.Equal(t, "https://dev.azure.test/run/42", h.WebURL)
}

func TestTrigger_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, EncodePAT("bad"), 5*time.Second)
	_, err := c.Trigger(context.Background(), testWorkflow())

	var te *domain.TriggerError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Error(), "401")
}

func TestStatus_CompletedRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/acme/infra/_apis/pipelines/12/runs/42", r.URL.Path)
		fmt.Fprint(w, `{"id":42,"state":"completed","result":"succeeded"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, EncodePAT("pat"), 5*time.Second)
	st, err := c.Status(context.Background(), domain.RunHandle{Workflow: testWorkflow(), RunID: 42})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, st)
}

func TestStatus_TransportErrorIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.URL, EncodePAT("pat"), 5*time.Second)
	_, err := c.Status(context.Background(), domain.RunHandle{Workflow: testWorkflow(), RunID: 42})

	var se *domain.StatusError
	assert.ErrorAs(t, err, &se)
}

func TestMapStatus(t *testing.T) {
	cases := []struct {
		state, result string
		want          domain.PipelineStatus
	}{
		{"unknown", "", domain.StatusQueued},
		{"inProgress", "", domain.StatusRunning},
		{"canceling", "", domain.StatusRunning},
		{"completed", "succeeded", domain.StatusSucceeded},
		{"completed", "failed", domain.StatusFailed},
		{"completed", "canceled", domain.StatusCancelled},
		{"completed", "somethingelse", domain.StatusUnknown},
		{"postponed", "", domain.StatusUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, mapStatus(tc.state, tc.result), "%s/%s", tc.state, tc.result)
	}
}

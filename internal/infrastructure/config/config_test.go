package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davarch/ci-dispatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FromYAMLAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
github:
  token: token-yaml
run:
  check_interval: 10s
workflows:
  - type: github
    name: build
    repo: acme/app
    workflow: ci.yml
    ref: main
    enabled: true
  - type: azure
    name: deploy
    organization: acme
    project: infra
    pipeline_id: 12
    branch: release
    enabled: false
`)

	t.Setenv("GITHUB_TOKEN", "token-env")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "token-env", c.GitHub.Token)
	assert.Equal(t, 10*time.Second, c.Run.CheckInterval)
	assert.Equal(t, 3600*time.Second, c.Run.Timeout)
	assert.True(t, c.Run.Wait)
	require.Len(t, c.Workflows, 2)

	ws := c.Domain()
	require.Len(t, ws, 2)
	assert.Equal(t, domain.PlatformGitHub, ws[0].Platform)
	assert.Equal(t, "build", ws[0].Name)
	assert.True(t, ws[0].Enabled)
	assert.Equal(t, domain.PlatformAzure, ws[1].Platform)
	assert.Equal(t, int64(12), ws[1].Azure.PipelineID)
	assert.Equal(t, "release", ws[1].Azure.Branch)
	assert.False(t, ws[1].Enabled)
}

func TestLoad_DefaultsRefAndName(t *testing.T) {
	path := writeConfig(t, `
workflows:
  - type: github
    repo: acme/app
    workflow: ci.yml
    enabled: true
`)

	c, err := Load(path)
	require.NoError(t, err)

	ws := c.Domain()
	require.Len(t, ws, 1)
	assert.Equal(t, "main", ws[0].GitHub.Ref)
	assert.Equal(t, "acme/app:ci.yml", ws[0].Name)
}

func TestLoad_RejectsBadWorkflows(t *testing.T) {
	cases := map[string]string{
		"unknown type": `
workflows:
  - type: jenkins
    enabled: true
`,
		"missing type": `
workflows:
  - repo: acme/app
    workflow: ci.yml
`,
		"github missing fields": `
workflows:
  - type: github
    repo: acme/app
`,
		"azure missing fields": `
workflows:
  - type: azure
    organization: acme
`,
		"mixed variants": `
workflows:
  - type: github
    repo: acme/app
    workflow: ci.yml
    organization: acme
    project: infra
    pipeline_id: 3
`,
		"no workflows": `
github:
  token: t
`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := writeConfig(t, `
workflows:
  - type: github
    name: build
    repo: acme/app
    workflow: ci.yml
    enabled: true
`)

	c, err := LoadFile(path)
	require.NoError(t, err)

	c.Workflows[0].Enabled = false
	require.NoError(t, Save(path, c))

	again, err := LoadFile(path)
	require.NoError(t, err)
	assert.False(t, again.Workflows[0].Enabled)
}

package domain

type Platform string

const (
	PlatformGitHub Platform = "github"
	PlatformAzure  Platform = "azure"
)

// PipelineStatus is the normalized status vocabulary shared by both
// platforms. Anything a platform reports that has no mapping becomes
// StatusUnknown and is treated as non-terminal.
type PipelineStatus string

const (
	StatusQueued    PipelineStatus = "queued"
	StatusRunning   PipelineStatus = "running"
	StatusSucceeded PipelineStatus = "succeeded"
	StatusFailed    PipelineStatus = "failed"
	StatusCancelled PipelineStatus = "cancelled"
	StatusUnknown   PipelineStatus = "unknown"
)

func (s PipelineStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type GitHubRef struct {
	Repo         string
	WorkflowFile string
	Ref          string
}

type AzureRef struct {
	Organization string
	Project      string
	PipelineID   int64
	Branch       string
}

// Workflow is one entry of the declarative batch. Exactly one variant
// matches Platform; config validation enforces this.
type Workflow struct {
	Platform Platform
	Name     string
	Enabled  bool

	GitHub GitHubRef
	Azure  AzureRef
}

// Target is a short human-readable identifier for log lines.
func (w Workflow) Target() string {
	if w.Platform == PlatformAzure {
		return w.Azure.Organization + "/" + w.Azure.Project
	}
	return w.GitHub.Repo
}

// RunHandle identifies one triggered execution on its platform.
type RunHandle struct {
	Workflow Workflow
	RunID    int64
	WebURL   string
}

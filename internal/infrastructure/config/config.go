package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/davarch/ci-dispatch/internal/domain"
	"gopkg.in/yaml.v3"
)

type Workflow struct {
	Type    string `yaml:"type"`
	Name    string `yaml:"name,omitempty"`
	Enabled bool   `yaml:"enabled"`

	// github
	Repo         string `yaml:"repo,omitempty"`
	WorkflowFile string `yaml:"workflow,omitempty"`
	Ref          string `yaml:"ref,omitempty"`

	// azure
	Organization string `yaml:"organization,omitempty"`
	Project      string `yaml:"project,omitempty"`
	PipelineID   int64  `yaml:"pipeline_id,omitempty"`
	Branch       string `yaml:"branch,omitempty"`
}

type Config struct {
	GitHub struct {
		BaseURL string        `yaml:"base_url"`
		Token   string        `yaml:"token"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"github"`

	Azure struct {
		BaseURL string        `yaml:"base_url"`
		Token   string        `yaml:"token"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"azure"`

	Run struct {
		Wait            bool          `yaml:"wait"`
		Timeout         time.Duration `yaml:"timeout"`
		CheckInterval   time.Duration `yaml:"check_interval"`
		ContinueOnError bool          `yaml:"continue_on_error"`
		Notify          bool          `yaml:"notify"`
	} `yaml:"run"`

	Report struct {
		Path string `yaml:"path"`
	} `yaml:"report"`

	Workflows []Workflow `yaml:"workflows"`
}

func Load(path string) (Config, error) {
	var c Config

	c.GitHub.BaseURL = "https://api.github.com"
	c.GitHub.Timeout = 10 * time.Second
	c.Azure.BaseURL = "https://dev.azure.com"
	c.Azure.Timeout = 10 * time.Second
	c.Run.Wait = true
	c.Run.Timeout = 3600 * time.Second
	c.Run.CheckInterval = 30 * time.Second

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if v := os.Getenv("GITHUB_BASE_URL"); v != "" {
		c.GitHub.BaseURL = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.GitHub.Token = v
	}
	if v := os.Getenv("AZURE_BASE_URL"); v != "" {
		c.Azure.BaseURL = v
	}
	if v := os.Getenv("AZURE_TOKEN"); v != "" {
		c.Azure.Token = v
	}
	if v := os.Getenv("CI_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Run.Timeout = d
		}
	}
	if v := os.Getenv("CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Run.CheckInterval = d
		}
	}
	if v := os.Getenv("REPORT_PATH"); v != "" {
		c.Report.Path = v
	}

	c.Report.Path = expandHome(c.Report.Path)

	if c.Run.CheckInterval <= 0 {
		c.Run.CheckInterval = 30 * time.Second
	}
	if c.Run.Timeout <= 0 {
		c.Run.Timeout = 3600 * time.Second
	}
	if c.GitHub.Timeout <= 0 {
		c.GitHub.Timeout = 10 * time.Second
	}
	if c.Azure.Timeout <= 0 {
		c.Azure.Timeout = 10 * time.Second
	}

	if len(c.Workflows) == 0 {
		return c, errors.New("no workflows configured")
	}

	for i, w := range c.Workflows {
		if err := validate(w); err != nil {
			return c, fmt.Errorf("workflows[%d]: %w", i, err)
		}
	}

	return c, nil
}

func validate(w Workflow) error {
	switch w.Type {
	case "github":
		if w.Repo == "" || w.WorkflowFile == "" {
			return errors.New("github workflow needs repo and workflow")
		}
		if w.Organization != "" || w.Project != "" || w.PipelineID != 0 {
			return errors.New("github workflow carries azure fields")
		}
	case "azure":
		if w.Organization == "" || w.Project == "" || w.PipelineID == 0 {
			return errors.New("azure workflow needs organization, project and pipeline_id")
		}
		if w.Repo != "" || w.WorkflowFile != "" {
			return errors.New("azure workflow carries github fields")
		}
	case "":
		return errors.New("missing type")
	default:
		return fmt.Errorf("unknown type %q", w.Type)
	}
	return nil
}

// Domain converts the config records into domain workflows, filling
// variant defaults.
func (c Config) Domain() []domain.Workflow {
	out := make([]domain.Workflow, 0, len(c.Workflows))
	for _, w := range c.Workflows {
		d := domain.Workflow{Name: w.Name, Enabled: w.Enabled}
		switch w.Type {
		case "azure":
			d.Platform = domain.PlatformAzure
			d.Azure = domain.AzureRef{
				Organization: w.Organization,
				Project:      w.Project,
				PipelineID:   w.PipelineID,
				Branch:       defaultStr(w.Branch, "main"),
			}
			if d.Name == "" {
				d.Name = fmt.Sprintf("%s/%s#%d", w.Organization, w.Project, w.PipelineID)
			}
		default:
			d.Platform = domain.PlatformGitHub
			d.GitHub = domain.GitHubRef{
				Repo:         w.Repo,
				WorkflowFile: w.WorkflowFile,
				Ref:          defaultStr(w.Ref, "main"),
			}
			if d.Name == "" {
				d.Name = w.Repo + ":" + w.WorkflowFile
			}
		}
		out = append(out, d)
	}
	return out
}

// LoadFile reads the raw file without env overrides or validation.
// The editing commands round-trip through it so environment-supplied
// tokens are never written back to disk.
func LoadFile(path string) (Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c Config) error {
	if path == "" {
		return errors.New("empty config path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	lockFile := path + ".lock"
	lf, err := os.OpenFile(lockFile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	defer func() { _ = lf.Close() }()

	if runtime.GOOS != "windows" {
		if err := syscall.Flock(int(lf.Fd()), syscall.LOCK_EX); err != nil {
			return err
		}
		defer func() { _ = syscall.Flock(int(lf.Fd()), syscall.LOCK_UN) }()
	}

	b, err := yaml.Marshal(&c)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(b); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if h, _ := os.UserHomeDir(); h != "" {
			return h + p[1:]
		}
	}
	return p
}

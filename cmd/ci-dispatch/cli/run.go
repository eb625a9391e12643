package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davarch/ci-dispatch/internal/application"
	"github.com/davarch/ci-dispatch/internal/domain"
	"github.com/davarch/ci-dispatch/internal/infrastructure/azure_http"
	"github.com/davarch/ci-dispatch/internal/infrastructure/config"
	"github.com/davarch/ci-dispatch/internal/infrastructure/github_http"
	"github.com/davarch/ci-dispatch/internal/infrastructure/logging"
	"github.com/davarch/ci-dispatch/internal/infrastructure/notify_libnotify"
	"github.com/davarch/ci-dispatch/internal/infrastructure/report_fs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runGithubToken      string
	runAzureToken       string
	runNoWait           bool
	runTimeoutSec       int
	runCheckIntervalSec int
	runContinueOnError  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Trigger the configured workflows and wait for their results",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		log := logging.New()
		defer func() { _ = log.Sync() }()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			log.Fatal("config", zap.Error(err))
		}

		if runGithubToken != "" {
			cfg.GitHub.Token = runGithubToken
		}
		if runAzureToken != "" {
			cfg.Azure.Token = runAzureToken
		}
		if runNoWait {
			cfg.Run.Wait = false
		}
		if cmd.Flags().Changed("timeout") {
			cfg.Run.Timeout = time.Duration(runTimeoutSec) * time.Second
		}
		if cmd.Flags().Changed("check-interval") {
			cfg.Run.CheckInterval = time.Duration(runCheckIntervalSec) * time.Second
		}
		if cmd.Flags().Changed("continue-on-error") {
			cfg.Run.ContinueOnError = runContinueOnError
		}

		if cfg.GitHub.Token == "" && cfg.Azure.Token == "" {
			log.Fatal("at least one token (GitHub or Azure DevOps) must be provided")
		}

		clients := map[domain.Platform]domain.PipelineClient{}
		if cfg.GitHub.Token != "" {
			clients[domain.PlatformGitHub] = github_http.New(cfg.GitHub.BaseURL, cfg.GitHub.Token, cfg.GitHub.Timeout)
		}
		if cfg.Azure.Token != "" {
			clients[domain.PlatformAzure] = azure_http.New(
				cfg.Azure.BaseURL, azure_http.EncodePAT(cfg.Azure.Token), cfg.Azure.Timeout)
		}

		workflows := cfg.Domain()

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		poller := application.NewPoller(log, cfg.Run.CheckInterval, cfg.Run.Timeout)
		orch := application.NewOrchestrator(log, clients, poller, application.Options{
			Wait:            cfg.Run.Wait,
			ContinueOnError: cfg.Run.ContinueOnError,
		})
		if cfg.Run.Notify {
			orch.WithNotifier(notify_libnotify.NewSoft())
		}
		if cfg.Report.Path != "" {
			orch.WithReporter(report_fs.New(cfg.Report.Path))
		}

		log.Info("start",
			zap.String("version", version),
			zap.Int("workflows", len(workflows)),
			zap.Bool("wait", cfg.Run.Wait),
			zap.Duration("timeout", cfg.Run.Timeout),
			zap.Duration("check_interval", cfg.Run.CheckInterval),
			zap.Bool("continue_on_error", cfg.Run.ContinueOnError),
		)

		batch := orch.Run(ctx, workflows)

		log.Info("done",
			zap.String("batch", batch.ID),
			zap.Bool("all_succeeded", batch.AllSucceeded()),
			zap.Duration("took", batch.Finished.Sub(batch.Started)),
		)

		_ = log.Sync()
		os.Exit(batch.ExitCode())
	},
}

func init() {
	runCmd.Flags().StringVar(&runGithubToken, "github-token", "", "GitHub token (overrides config/env)")
	runCmd.Flags().StringVar(&runAzureToken, "azure-token", "", "Azure DevOps PAT (overrides config/env)")
	runCmd.Flags().BoolVar(&runNoWait, "no-wait", false, "trigger only, do not wait for completion")
	runCmd.Flags().IntVar(&runTimeoutSec, "timeout", 3600, "per-workflow wait timeout, seconds")
	runCmd.Flags().IntVar(&runCheckIntervalSec, "check-interval", 30, "status poll interval, seconds")
	runCmd.Flags().BoolVar(&runContinueOnError, "continue-on-error", false, "keep going after a failed workflow")

	rootCmd.AddCommand(runCmd)
}

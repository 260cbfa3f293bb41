package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/scanio-agent/internal/agent"
	"github.com/scan-io-git/scanio-agent/internal/console"
	"github.com/scan-io-git/scanio-agent/internal/executor"
	"github.com/scan-io-git/scanio-agent/internal/fetcher"
	"github.com/scan-io-git/scanio-agent/internal/identity"
	"github.com/scan-io-git/scanio-agent/internal/scanner"
	"github.com/scan-io-git/scanio-agent/pkg/shared/config"
	"github.com/scan-io-git/scanio-agent/pkg/shared/logger"
)

type runOptions struct {
	consoleURL string
	name       string
	logLevel   string
}

// NewRunCmd creates the "run" command that starts the agent loop.
func NewRunCmd() *cobra.Command {
	opts := &runOptions{}

	runCmd := &cobra.Command{
		Use:                   "run",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Start the agent and serve scan tasks until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			applyOverrides(AppConfig, opts)
			return runAgent(AppConfig)
		},
	}

	runCmd.Flags().StringVar(&opts.consoleURL, "console", "", "console base URL (overrides config)")
	runCmd.Flags().StringVar(&opts.name, "name", "", "agent name (overrides config)")
	runCmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level: TRACE, DEBUG, INFO, WARN or ERROR")

	return runCmd
}

func applyOverrides(cfg *config.Config, opts *runOptions) {
	if opts.consoleURL != "" {
		cfg.Agent.ConsoleURL = opts.consoleURL
	}
	if opts.name != "" {
		cfg.Agent.Name = opts.name
	}
	if opts.logLevel != "" {
		cfg.Logger.Level = opts.logLevel
	}
}

func runAgent(cfg *config.Config) error {
	if cfg.Agent.ConsoleURL == "" {
		return fmt.Errorf("console URL is required: set agent.console_url or pass --console")
	}

	log := logger.NewLogger(cfg, "agent")

	store := identity.NewStore(cfg.Agent.IdentityFile)
	client := console.New(cfg.Agent.ConsoleURL, &cfg.HTTPClient, logger.NewLogger(cfg, "console-client"))

	repoFetcher, err := fetcher.New(cfg.Agent.WorkspaceDir, &cfg.GitClient, logger.NewLogger(cfg, "fetcher"))
	if err != nil {
		return err
	}

	registry := scanner.NewRegistry(
		scanner.NewBandit(cfg.Scanners.Paths["bandit"], cfg.Scanners.Timeout, logger.NewLogger(cfg, "scanner.bandit")),
		scanner.NewSemgrep(cfg.Scanners.Paths["semgrep"], cfg.Scanners.Timeout, logger.NewLogger(cfg, "scanner.semgrep")),
	)

	exec := executor.New(client, repoFetcher, registry, logger.NewLogger(cfg, "executor"))

	a := agent.New(&cfg.Agent, store, client, exec, registry.Names(), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}

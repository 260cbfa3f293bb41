package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/scanio-agent/cmd/version"
	"github.com/scan-io-git/scanio-agent/pkg/shared/config"
)

var (
	cfgFile   string
	AppConfig *config.Config
	rootCmd   = &cobra.Command{
		Use:                   "scanio-agent [command]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Scanio agent runs static-analysis scans on behalf of a central console.",
		Long: `Scanio agent is a long-lived worker process. It registers itself with a
	SAST console, announces liveness, pulls pending scan tasks, clones the
	target repositories, runs the requested scanners and reports findings back.
	`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.scanio/agent-config.yaml)")
	rootCmd.AddCommand(version.NewVersionCmd())
	rootCmd.AddCommand(NewRunCmd())
}

func Execute() int {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		return 1
	}
	return 0
}

func initConfig() {
	var err error

	if cfgFile == "" {
		home, herr := os.UserHomeDir()
		if herr == nil {
			cfgFile = home + "/.scanio/agent-config.yaml"
		}
	}
	AppConfig, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.ValidateConfig(AppConfig); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

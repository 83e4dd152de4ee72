// Package cli implements the cmp-trust command line tool.
package cli

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/cmp-trust/internal/config"
	"github.com/information-sharing-networks/cmp-trust/internal/logger"
	"github.com/information-sharing-networks/cmp-trust/internal/version"
)

var (
	cfg       *config.CLIEnvironment
	appLogger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:               "cmp-trust",
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,
	Short:             "CMP message protection tool",
	Long:              `cmp-trust decodes CMP (RFC 4210) messages and validates their MAC or signature protection`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.NewCLIConfig()
		if err != nil {
			log.Printf("failed to load configuration: %v", err.Error())
			return err
		}

		// stdout is reserved for command output
		appLogger = logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment,
			logger.WithOutput(cmd.ErrOrStderr()))
		return nil
	},
}

func Execute() {
	v := version.Get()
	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)
}

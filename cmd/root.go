package cmd

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"hookdeploy/config"
	"hookdeploy/logging"
)

var rootCmd = &cobra.Command{
	Use:           "hookdeploy",
	Short:         "Webhook driven deployments",
	Long:          "hookdeploy runs a project's deploy script when a signed webhook arrives and keeps a timestamped log of every run.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load .env file if it exists (ignore errors if it doesn't)
		_ = godotenv.Load()
	},
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.New("hookdeploy", logging.ParseLevel(cfg.LogLevel))
}

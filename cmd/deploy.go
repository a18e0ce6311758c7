package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hookdeploy/config"
	"hookdeploy/runner"
)

var deployCmd = &cobra.Command{
	Use:   "deploy <project> [path]",
	Short: "Run one deployment locally and stream its output",
	Long: "Runs the deployment script for a project the same way a webhook would,\n" +
		"writing to the daily log file and mirroring each line to the terminal.\n" +
		"The path is relative to the home directory and may be omitted for\n" +
		"projects listed in the projects file.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		path := ""
		if len(args) == 2 {
			path = args[1]
		}
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return Deploy(ctx, cfg, args[0], path)
	},
}

func init() {
	rootCmd.AddCommand(deployCmd)
}

// Deploy executes one deployment and waits for it. Cancelling ctx stops the
// script.
func Deploy(ctx context.Context, cfg config.Config, name, path string) error {
	logger := newLogger(cfg)
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.close(closeCtx)
	}()

	project, err := a.resolver.Resolve(name, path)
	if err != nil {
		return err
	}

	a.service.Deployer.Echo = os.Stdout
	results := make(chan runner.Result, 1)
	a.service.OnFinish = func(r runner.Result) { results <- r }

	baseURL := cfg.PublicURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	res, err := a.service.Trigger(ctx, runner.TriggerRequest{Project: project, BaseURL: baseURL})
	if err != nil {
		return fmt.Errorf("failed to start deployment: %w", err)
	}
	fmt.Fprintf(os.Stderr, "deploying %s from %s\nlog: %s\n", project.Name, project.Path, a.sink.Abs(res.LogPath))

	var result runner.Result
	select {
	case result = <-results:
	case <-ctx.Done():
		job, _ := a.registry.Live(project.Name)
		if job != nil {
			a.registry.CancelAndAwait(job)
		}
		result = <-results
	}

	fmt.Fprintf(os.Stderr, "\nstatus: %s | exit code: %d | duration: %s\n", result.Status, result.ExitCode, result.Duration().Round(time.Millisecond))
	if result.Status != runner.StatusSuccess {
		if result.Err != nil {
			return fmt.Errorf("deployment %s: %w", result.Status, result.Err)
		}
		return fmt.Errorf("deployment %s", result.Status)
	}
	return nil
}

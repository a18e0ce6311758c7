package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"hookdeploy/api"
	"hookdeploy/config"
	"hookdeploy/signature"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return Serve(ctx, cfg, newLogger(cfg))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// Serve starts the HTTP server and blocks until ctx is cancelled.
func Serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.WebhookSecret == "" {
		logger.Warn("GITHUB_WEBHOOK_SECRET is not set, every webhook will be rejected")
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := api.NewMetrics(reg, a.registry.LiveCount)
	a.service.OnFinish = metrics.RecordDeployment

	server := &api.Server{
		Service:   a.service,
		Resolver:  a.resolver,
		Verifier:  signature.New(cfg.WebhookSecret),
		Sink:      a.sink,
		Store:     a.store,
		Broker:    a.broker,
		Metrics:   metrics,
		Logger:    logger,
		PublicURL: cfg.PublicURL,
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		logger.Info("starting webhook server", "addr", cfg.Addr(), "home", cfg.HomeDir, "logs", a.sink.BaseDir)
		errorCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errorCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	a.close(shutdownCtx)
	return serveErr
}

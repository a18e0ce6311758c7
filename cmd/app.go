package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"hookdeploy/config"
	"hookdeploy/events"
	"hookdeploy/notify"
	"hookdeploy/runner"
	"hookdeploy/runner/storage"
)

// app is the set of components shared by the serve and deploy commands.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *storage.Storage
	projects *runner.ProjectsConfig
	queue    *notify.Queue
	registry *runner.Registry
	sink     *runner.LogSink
	broker   *events.EventBroker
	service  *runner.Service
	resolver runner.Resolver
}

func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.NewStorage(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if n, err := store.MarkInterrupted(); err != nil {
		logger.Warn("failed to mark interrupted deployments", "error", err)
	} else if n > 0 {
		logger.Info("marked deployments interrupted by a previous shutdown", "count", n)
	}

	projects, err := loadProjects(cfg.ProjectsFile, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	var mailer notify.Notifier = notify.LogNotifier{Logger: logger}
	mailCfg := notify.MailConfig{
		Host:     cfg.SMTPServer,
		Port:     cfg.SMTPPort,
		Username: cfg.EmailAddress,
		Password: cfg.EmailPassword,
		From:     cfg.EmailAddress,
		To:       cfg.NotifyTo,
	}
	if mailCfg.Configured() {
		mailer = notify.NewMailer(mailCfg, logger)
	} else {
		logger.Warn("SMTP is not configured, notifications go to the log only")
	}
	queue := notify.NewQueue(mailer, 0, logger)

	registryOpts := []runner.RegistryOption{runner.WithLogger(logger)}
	if cfg.MaxJobs > 0 {
		registryOpts = append(registryOpts, runner.WithMaxLive(cfg.MaxJobs))
	}
	registry := runner.NewRegistry(registryOpts...)
	sink := runner.NewLogSink(cfg.BaseDir)
	broker := events.NewBroker(logger)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		projects: projects,
		queue:    queue,
		registry: registry,
		sink:     sink,
		broker:   broker,
		resolver: runner.Resolver{
			Home:          cfg.HomeDir,
			Projects:      projects,
			DefaultScript: cfg.DefaultScript,
		},
	}
	a.service = &runner.Service{
		Registry: registry,
		Deployer: &runner.Deployer{
			Sink:      sink,
			Notifier:  queue,
			Logger:    logger,
			Shell:     cfg.Shell,
			KillGrace: cfg.KillGrace,
		},
		Sink:     sink,
		Notifier: queue,
		History:  runner.StorageHistory{Store: store},
		Events:   broker,
		Logger:   logger,
	}
	return a, nil
}

// loadProjects reads the optional projects file.
func loadProjects(path string, logger *slog.Logger) (*runner.ProjectsConfig, error) {
	projects, err := runner.LoadProjects(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("no projects file, accepting any project under the home directory", "path", path)
			return &runner.ProjectsConfig{}, nil
		}
		return nil, err
	}
	logger.Info("loaded projects", "count", len(projects.Projects), "path", path)
	return projects, nil
}

// close stops running jobs, flushes notifications and closes storage.
func (a *app) close(ctx context.Context) {
	if err := a.registry.Shutdown(ctx); err != nil {
		a.logger.Warn("deployments still running at shutdown", "error", err)
	}
	if err := a.queue.Close(ctx); err != nil {
		a.logger.Warn("pending notifications dropped at shutdown", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close storage", "error", err)
	}
}

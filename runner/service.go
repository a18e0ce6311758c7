package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TriggerRequest asks for one deployment of a resolved project.
type TriggerRequest struct {
	Project Project
	BaseURL string // prefix for the log retrieval URL, e.g. http://host:5001
}

// TriggerResult is returned once the job has been registered.
type TriggerResult struct {
	JobID   string `json:"job_id"`
	Project string `json:"project"`
	LogPath string `json:"log_path"`
	LogURL  string `json:"log_url"`
}

// Service wires the registry, runner, notifications and history together.
type Service struct {
	Registry *Registry
	Deployer *Deployer
	Sink     *LogSink
	Notifier Notifier
	History  History
	Events   Publisher
	Logger   *slog.Logger

	// OnFinish is called with every finished result, after history was written.
	OnFinish func(Result)
}

// Trigger supersedes any live job for the project and starts a new one.
// It returns without waiting for the deployment to finish.
func (s *Service) Trigger(ctx context.Context, req TriggerRequest) (TriggerResult, error) {
	project := req.Project
	logPath, err := s.Sink.Path(project.Name)
	if err != nil {
		return TriggerResult{}, err
	}
	logURL := LogURL(req.BaseURL, logPath)

	s.logger().Info("processing deployment request", "project", project.Name, "path", project.Path, "log", logPath)
	s.notify("Deployment Started", fmt.Sprintf("%s deployment has started for project at: %s", project.Name, logURL))

	jobID := uuid.NewString()
	job, err := s.Registry.Submit(project.Name, func(jobCtx context.Context) {
		s.run(jobCtx, jobID, project, logPath)
	}, WithJobID(jobID), WithLogPath(logPath))
	if err != nil {
		s.notify("Deployment Failure", fmt.Sprintf("Unexpected error occurred. Error: %v", err))
		return TriggerResult{}, err
	}

	s.notify("Deployment Initiated", fmt.Sprintf("Deployment Output Log URL:\n%s", logURL))

	return TriggerResult{
		JobID:   job.ID,
		Project: project.Name,
		LogPath: logPath,
		LogURL:  logURL,
	}, nil
}

func (s *Service) run(ctx context.Context, jobID string, project Project, logPath string) {
	if s.History != nil {
		if err := s.History.RecordStart(jobID, project, logPath, time.Now()); err != nil {
			s.logger().Warn("failed to record deployment start", "project", project.Name, "error", err)
		}
	}
	s.publish("deployment_started", map[string]interface{}{
		"project":  project.Name,
		"job_id":   jobID,
		"log_path": logPath,
	})

	result := s.Deployer.Run(ctx, project, logPath)
	result.JobID = jobID

	if s.History != nil {
		if err := s.History.RecordFinish(result); err != nil {
			s.logger().Warn("failed to record deployment result", "project", project.Name, "error", err)
		}
	}

	eventType := "deployment_finished"
	if result.Status == StatusCancelled {
		eventType = "deployment_cancelled"
	}
	s.publish(eventType, map[string]interface{}{
		"project":   project.Name,
		"job_id":    jobID,
		"status":    result.Status,
		"exit_code": result.ExitCode,
		"log_path":  logPath,
		"duration":  result.Duration().String(),
	})

	if s.OnFinish != nil {
		s.OnFinish(result)
	}
}

// LogURL joins the public base URL with the retrieval route for logPath.
func LogURL(baseURL, logPath string) string {
	return strings.TrimRight(baseURL, "/") + "/logs/" + strings.TrimLeft(logPath, "/")
}

func (s *Service) notify(subject, body string) {
	if s.Notifier != nil {
		s.Notifier.Notify(subject, body)
	}
}

func (s *Service) publish(eventType string, data map[string]interface{}) {
	if s.Events != nil {
		s.Events.Broadcast(eventType, data)
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return discardLogger
}

package storage

import "time"

// Deployment statuses stored alongside the runner's own statuses.
const (
	StatusRunning     = "running"
	StatusInterrupted = "interrupted"
)

// Deployment represents one deployment job execution
type Deployment struct {
	ID          string     `json:"id"`
	ProjectName string     `json:"project_name"`
	ProjectPath string     `json:"project_path"`
	LogPath     string     `json:"log_path"`
	Status      string     `json:"status"` // "running", "success", "failed", "cancelled", "interrupted"
	ExitCode    *int       `json:"exit_code,omitempty"`
	Error       *string    `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Duration    *string    `json:"duration,omitempty"`
}

// ProjectSummary aggregates the deployment history of one project
type ProjectSummary struct {
	ProjectName string         `json:"project_name"`
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"by_status"`
	Latest      *Deployment    `json:"latest,omitempty"`
}

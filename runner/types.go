package runner

import (
	"time"
)

// Deployment outcome statuses.
const (
	StatusRunning   = "running"
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Result represents the outcome of one deployment run
type Result struct {
	JobID      string    `json:"job_id,omitempty"`
	Project    string    `json:"project"`
	Path       string    `json:"path"`
	LogPath    string    `json:"log_path"`
	Status     string    `json:"status"` // "success", "failed" or "cancelled"
	ExitCode   int       `json:"exit_code"`
	Launched   bool      `json:"launched"`
	Err        error     `json:"-"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration is the wall time of the run.
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Error returns the failure message, or an empty string.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Notifier receives operator notifications. It must not block for long or panic.
type Notifier interface {
	Notify(subject, body string)
}

// Publisher fans deployment lifecycle events out to listeners.
type Publisher interface {
	Broadcast(eventType string, data interface{})
}

// History persists deployment records.
type History interface {
	RecordStart(jobID string, project Project, logPath string, startedAt time.Time) error
	RecordFinish(result Result) error
}

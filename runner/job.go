package runner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// JobState is the tri-state cancellation flag of a job.
type JobState int32

const (
	JobRunning JobState = iota
	JobCancelRequested
	JobFinished
)

func (s JobState) String() string {
	switch s {
	case JobRunning:
		return "running"
	case JobCancelRequested:
		return "cancel_requested"
	case JobFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// RunFunc is one deployment procedure. It must return promptly once ctx is done.
type RunFunc func(ctx context.Context)

// Job is a single deployment execution for a project.
type Job struct {
	ID        string    `json:"id"`
	Project   string    `json:"project"`
	LogPath   string    `json:"log_path,omitempty"`
	StartedAt time.Time `json:"started_at"`

	state  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// JobOption customises a job at submission.
type JobOption func(*Job)

// WithLogPath records the log file the job writes to.
func WithLogPath(path string) JobOption {
	return func(j *Job) { j.LogPath = path }
}

// WithJobID overrides the generated job ID.
func WithJobID(id string) JobOption {
	return func(j *Job) {
		if id != "" {
			j.ID = id
		}
	}
}

func newJob(project string, opts ...JobOption) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	j := &Job{
		ID:        uuid.NewString(),
		Project:   project,
		StartedAt: time.Now().UTC(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// State returns the current cancellation state.
func (j *Job) State() JobState {
	return JobState(j.state.Load())
}

// Live reports whether the job has not finished yet.
func (j *Job) Live() bool {
	return j.State() != JobFinished
}

// Done is closed after the job's run function returned and cleanup ran.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finished.
func (j *Job) Wait() {
	<-j.done
}

// Context is the job's cancellation token.
func (j *Job) Context() context.Context {
	return j.ctx
}

func (j *Job) requestCancel() {
	j.state.CompareAndSwap(int32(JobRunning), int32(JobCancelRequested))
	j.cancel()
}

func (j *Job) finish() {
	j.state.Store(int32(JobFinished))
	j.cancel()
	close(j.done)
}

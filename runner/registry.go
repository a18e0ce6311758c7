package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ErrTooManyJobs is returned by Submit when the live job limit is reached.
var ErrTooManyJobs = errors.New("too many live deployment jobs")

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Registry owns the project -> job mapping and the supersede protocol.
type Registry struct {
	mu      sync.Mutex
	jobs    map[string]*Job         // latest job per project, finished or not
	keys    map[string]*projectLock // serialises Submit per project
	maxLive int
	logger  *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMaxLive caps the number of concurrently live jobs. Zero means no cap.
func WithMaxLive(n int) RegistryOption {
	return func(r *Registry) { r.maxLive = n }
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		jobs:   make(map[string]*Job),
		keys:   make(map[string]*projectLock),
		logger: discardLogger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit starts run as the live job for project, superseding any live job.
// The previous job has fully exited before the new one starts.
func (r *Registry) Submit(project string, run RunFunc, opts ...JobOption) (*Job, error) {
	if run == nil {
		return nil, fmt.Errorf("run function is required")
	}
	key := r.acquire(project)
	defer r.release(project, key)

	if prev, ok := r.Live(project); ok {
		r.logger.Info("superseding live deployment", "project", project, "job_id", prev.ID)
		r.CancelAndAwait(prev)
	}

	job := newJob(project, opts...)

	r.mu.Lock()
	if r.maxLive > 0 && r.liveCountLocked() >= r.maxLive {
		r.mu.Unlock()
		job.cancel()
		return nil, fmt.Errorf("failed to start job for %s: %w", project, ErrTooManyJobs)
	}
	r.jobs[project] = job
	r.mu.Unlock()

	go r.execute(job, run)

	r.logger.Info("deployment job started", "project", project, "job_id", job.ID)
	return job, nil
}

func (r *Registry) execute(job *Job, run RunFunc) {
	defer job.finish()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("deployment job panicked", "project", job.Project, "job_id", job.ID, "panic", rec)
		}
	}()
	run(job.ctx)
}

// CancelAndAwait requests cancellation and blocks until the job exited.
func (r *Registry) CancelAndAwait(job *Job) {
	if job == nil {
		return
	}
	job.requestCancel()
	<-job.done
	r.logger.Info("deployment job stopped", "project", job.Project, "job_id", job.ID)
}

// Live returns the live job for project, if any.
func (r *Registry) Live(project string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[project]
	if !ok || !job.Live() {
		return nil, false
	}
	return job, true
}

// Last returns the most recent job for project, live or finished.
func (r *Registry) Last(project string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[project]
	return job, ok
}

// LiveJobs returns a snapshot of all live jobs.
func (r *Registry) LiveJobs() []*Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if job.Live() {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// LiveCount returns the number of live jobs.
func (r *Registry) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liveCountLocked()
}

// Shutdown cancels every live job and waits for them until ctx is done.
func (r *Registry) Shutdown(ctx context.Context) error {
	jobs := r.LiveJobs()
	for _, job := range jobs {
		job.requestCancel()
	}
	for _, job := range jobs {
		select {
		case <-job.done:
		case <-ctx.Done():
			return fmt.Errorf("failed to stop deployment jobs: %w", ctx.Err())
		}
	}
	return nil
}

func (r *Registry) liveCountLocked() int {
	n := 0
	for _, job := range r.jobs {
		if job.Live() {
			n++
		}
	}
	return n
}

// projectLock is held for the whole of a Submit. refs counts holders and
// waiters so the entry can be dropped once nobody needs it.
type projectLock struct {
	sync.Mutex
	refs int
}

func (r *Registry) acquire(project string) *projectLock {
	r.mu.Lock()
	l, ok := r.keys[project]
	if !ok {
		l = &projectLock{}
		r.keys[project] = l
	}
	l.refs++
	r.mu.Unlock()

	l.Lock()
	return l
}

func (r *Registry) release(project string, l *projectLock) {
	l.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(r.keys, project)
	}
}

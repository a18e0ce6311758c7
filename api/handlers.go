package api

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	goerrors "github.com/goliatone/go-errors"

	"hookdeploy/runner"
	"hookdeploy/runner/storage"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// jobView is the JSON shape of a live job.
type jobView struct {
	ID        string    `json:"id"`
	Project   string    `json:"project"`
	LogPath   string    `json:"log_path"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

func viewJob(job *runner.Job) *jobView {
	if job == nil {
		return nil
	}
	return &jobView{
		ID:        job.ID,
		Project:   job.Project,
		LogPath:   job.LogPath,
		State:     job.State().String(),
		StartedAt: job.StartedAt,
	}
}

func listLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apiError("limit must be a positive integer", goerrors.CategoryBadInput, http.StatusBadRequest)
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}

// GetDeployments returns the most recent deployments
func GetDeployments(store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := listLimit(r)
		if err != nil {
			writeError(w, err)
			return
		}
		deployments, err := store.GetDeployments(limit)
		if err != nil {
			writeError(w, apiWrapError(err, goerrors.CategoryInternal, "failed to get deployments", http.StatusInternalServerError))
			return
		}
		writeJSON(w, http.StatusOK, deployments)
	}
}

// GetDeployment returns a single deployment record
func GetDeployment(store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deployment, err := store.GetDeployment(chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, apiError("deployment not found", goerrors.CategoryNotFound, http.StatusNotFound))
				return
			}
			writeError(w, apiWrapError(err, goerrors.CategoryInternal, "failed to get deployment", http.StatusInternalServerError))
			return
		}
		writeJSON(w, http.StatusOK, deployment)
	}
}

// GetProjectDeployments returns the deployment history of one project
func GetProjectDeployments(store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if err := runner.ValidateProjectName(name); err != nil {
			writeError(w, apiWrapError(err, goerrors.CategoryBadInput, "invalid project name", http.StatusBadRequest))
			return
		}
		limit, err := listLimit(r)
		if err != nil {
			writeError(w, err)
			return
		}
		deployments, err := store.GetProjectDeployments(name, limit)
		if err != nil {
			writeError(w, apiWrapError(err, goerrors.CategoryInternal, "failed to get project deployments", http.StatusInternalServerError))
			return
		}
		writeJSON(w, http.StatusOK, deployments)
	}
}

// projectView merges configuration, the live job and history for one project.
type projectView struct {
	Name        string                  `json:"name"`
	Path        string                  `json:"path,omitempty"`
	Script      string                  `json:"script,omitempty"`
	Description string                  `json:"description,omitempty"`
	Configured  bool                    `json:"configured"`
	LiveJob     *jobView                `json:"live_job,omitempty"`
	History     *storage.ProjectSummary `json:"history,omitempty"`
}

// GetProjects lists configured projects plus any project seen in history
// or currently deploying.
func GetProjects(projects *runner.ProjectsConfig, registry *runner.Registry, store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views := map[string]*projectView{}
		view := func(name string) *projectView {
			v, ok := views[name]
			if !ok {
				v = &projectView{Name: name}
				views[name] = v
			}
			return v
		}

		if projects != nil {
			for _, p := range projects.Projects {
				v := view(p.Name)
				v.Path, v.Script, v.Description, v.Configured = p.Path, p.Script, p.Description, true
			}
		}
		if store != nil {
			summaries, err := store.GetProjectSummaries()
			if err != nil {
				writeError(w, apiWrapError(err, goerrors.CategoryInternal, "failed to get project history", http.StatusInternalServerError))
				return
			}
			for i := range summaries {
				view(summaries[i].ProjectName).History = &summaries[i]
			}
		}
		for _, job := range registry.LiveJobs() {
			view(job.Project).LiveJob = viewJob(job)
		}

		out := make([]*projectView, 0, len(views))
		for _, v := range views {
			out = append(out, v)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		writeJSON(w, http.StatusOK, out)
	}
}

// GetLiveJobs returns the deployments currently running
func GetLiveJobs(registry *runner.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs := registry.LiveJobs()
		out := make([]*jobView, 0, len(jobs))
		for _, job := range jobs {
			out = append(out, viewJob(job))
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Project < out[j].Project })
		writeJSON(w, http.StatusOK, out)
	}
}

package runner

import (
	"time"

	"hookdeploy/runner/storage"
)

// StorageHistory records deployments in the SQLite store.
type StorageHistory struct {
	Store *storage.Storage
}

func (h StorageHistory) RecordStart(jobID string, project Project, logPath string, startedAt time.Time) error {
	_, err := h.Store.CreateDeployment(jobID, project.Name, project.Path, logPath, startedAt)
	return err
}

func (h StorageHistory) RecordFinish(result Result) error {
	return h.Store.FinishDeployment(result.JobID, result.Status, result.ExitCode, result.Error(), result.FinishedAt, result.Duration())
}

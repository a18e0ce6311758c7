package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a deployment does not exist.
var ErrNotFound = errors.New("deployment not found")

const deploymentColumns = "id, project_name, project_path, log_path, status, exit_code, error, started_at, finished_at, duration"

// CreateDeployment inserts a running deployment record
func (s *Storage) CreateDeployment(id, projectName, projectPath, logPath string, startedAt time.Time) (*Deployment, error) {
	_, err := s.db.Exec(
		"INSERT INTO deployments (id, project_name, project_path, log_path, status, started_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, projectName, projectPath, logPath, StatusRunning, startedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create deployment: %w", err)
	}

	return &Deployment{
		ID:          id,
		ProjectName: projectName,
		ProjectPath: projectPath,
		LogPath:     logPath,
		Status:      StatusRunning,
		StartedAt:   startedAt.UTC(),
	}, nil
}

// FinishDeployment stores the final status of a deployment
func (s *Storage) FinishDeployment(id, status string, exitCode int, errMsg string, finishedAt time.Time, duration time.Duration) error {
	var errValue sql.NullString
	if errMsg != "" {
		errValue = sql.NullString{String: errMsg, Valid: true}
	}
	res, err := s.db.Exec(
		"UPDATE deployments SET status = ?, exit_code = ?, error = ?, finished_at = ?, duration = ? WHERE id = ?",
		status, exitCode, errValue, finishedAt.UTC(), duration.String(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish deployment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkInterrupted flags deployments left running by a previous process
func (s *Storage) MarkInterrupted() (int64, error) {
	res, err := s.db.Exec(
		"UPDATE deployments SET status = ?, finished_at = ? WHERE status = ?",
		StatusInterrupted, time.Now().UTC(), StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted deployments: %w", err)
	}
	return res.RowsAffected()
}

// GetDeployments retrieves deployments, most recent first
func (s *Storage) GetDeployments(limit int) ([]*Deployment, error) {
	rows, err := s.db.Query(
		"SELECT "+deploymentColumns+" FROM deployments ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query deployments: %w", err)
	}
	defer rows.Close()
	return scanDeployments(rows)
}

// GetProjectDeployments retrieves deployments for one project, most recent first
func (s *Storage) GetProjectDeployments(projectName string, limit int) ([]*Deployment, error) {
	rows, err := s.db.Query(
		"SELECT "+deploymentColumns+" FROM deployments WHERE project_name = ? ORDER BY started_at DESC LIMIT ?",
		projectName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query deployments: %w", err)
	}
	defer rows.Close()
	return scanDeployments(rows)
}

// GetDeployment retrieves a single deployment by ID
func (s *Storage) GetDeployment(id string) (*Deployment, error) {
	row := s.db.QueryRow("SELECT "+deploymentColumns+" FROM deployments WHERE id = ?", id)
	d, err := scanDeployment(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}
	return d, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDeployment(row scanner) (*Deployment, error) {
	var d Deployment
	var exitCode sql.NullInt64
	var errMsg sql.NullString
	var finishedAt sql.NullTime
	var duration sql.NullString

	err := row.Scan(&d.ID, &d.ProjectName, &d.ProjectPath, &d.LogPath, &d.Status, &exitCode, &errMsg, &d.StartedAt, &finishedAt, &duration)
	if err != nil {
		return nil, err
	}

	if exitCode.Valid {
		code := int(exitCode.Int64)
		d.ExitCode = &code
	}
	if errMsg.Valid {
		msg := errMsg.String
		d.Error = &msg
	}
	if finishedAt.Valid {
		d.FinishedAt = &finishedAt.Time
	}
	if duration.Valid {
		durationStr := duration.String
		d.Duration = &durationStr
	}
	return &d, nil
}

func scanDeployments(rows *sql.Rows) ([]*Deployment, error) {
	deployments := make([]*Deployment, 0)
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

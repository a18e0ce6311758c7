package storage

import (
	"fmt"
)

// GetProjectSummaries returns per-project counts and the latest deployment
func (s *Storage) GetProjectSummaries() ([]ProjectSummary, error) {
	rows, err := s.db.Query(`
		SELECT project_name, status, COUNT(*)
		FROM deployments
		GROUP BY project_name, status
		ORDER BY project_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query project summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]ProjectSummary, 0)
	index := make(map[string]int)
	for rows.Next() {
		var project, status string
		var count int
		if err := rows.Scan(&project, &status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan project summary: %w", err)
		}
		i, ok := index[project]
		if !ok {
			i = len(summaries)
			index[project] = i
			summaries = append(summaries, ProjectSummary{ProjectName: project, ByStatus: make(map[string]int)})
		}
		summaries[i].ByStatus[status] = count
		summaries[i].Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range summaries {
		latest, err := s.GetProjectDeployments(summaries[i].ProjectName, 1)
		if err != nil {
			return nil, err
		}
		if len(latest) > 0 {
			summaries[i].Latest = latest[0]
		}
	}

	return summaries, nil
}

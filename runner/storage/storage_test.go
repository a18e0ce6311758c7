package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := NewStorage(filepath.Join(t.TempDir(), "hookdeploy.db"))
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndFinishDeployment(t *testing.T) {
	store := newTestStorage(t)
	started := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	if _, err := store.CreateDeployment("job-1", "site", "/home/deploy/apps/site", "deployment_logs/site/20261014_site.log", started); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.GetDeployment("job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusRunning {
		t.Fatalf("expected running, got %s", got.Status)
	}
	if got.ExitCode != nil || got.FinishedAt != nil {
		t.Fatalf("expected no exit code or finish time on a running deployment")
	}

	finished := started.Add(90 * time.Second)
	if err := store.FinishDeployment("job-1", "failed", 7, "deployment script exited with code 7", finished, 90*time.Second); err != nil {
		t.Fatalf("finish: %v", err)
	}

	got, err = store.GetDeployment("job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "failed" {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.ExitCode == nil || *got.ExitCode != 7 {
		t.Fatalf("expected exit code 7, got %v", got.ExitCode)
	}
	if got.Error == nil || *got.Error == "" {
		t.Fatalf("expected error message to be stored")
	}
	if got.Duration == nil || *got.Duration != "1m30s" {
		t.Fatalf("unexpected duration %v", got.Duration)
	}
	if !got.StartedAt.Equal(started) {
		t.Fatalf("expected started_at %s, got %s", started, got.StartedAt)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hookdeploy.db")
	store, err := NewStorage(dbPath)
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	if _, err := store.CreateDeployment("job-1", "site", "/srv/site", "deployment_logs/site/20261014_site.log", time.Now()); err != nil {
		t.Fatalf("create: %v", err)
	}
	store.Close()

	store, err = NewStorage(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	if _, err := store.GetDeployment("job-1"); err != nil {
		t.Fatalf("expected deployment to survive reopen: %v", err)
	}
}

func TestGetDeploymentNotFound(t *testing.T) {
	store := newTestStorage(t)
	if _, err := store.GetDeployment("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.FinishDeployment("missing", "success", 0, "", time.Now(), time.Second); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on finish, got %v", err)
	}
}

func TestListingAndSummaries(t *testing.T) {
	store := newTestStorage(t)
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	records := []struct {
		id, project, status string
	}{
		{"a", "site", "cancelled"},
		{"b", "site", "success"},
		{"c", "api", "failed"},
	}
	for i, r := range records {
		started := base.Add(time.Duration(i) * time.Minute)
		if _, err := store.CreateDeployment(r.id, r.project, "", "", started); err != nil {
			t.Fatalf("create %s: %v", r.id, err)
		}
		if err := store.FinishDeployment(r.id, r.status, 0, "", started.Add(time.Second), time.Second); err != nil {
			t.Fatalf("finish %s: %v", r.id, err)
		}
	}

	all, err := store.GetDeployments(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" {
		t.Fatalf("expected most recent first, got %d records starting with %v", len(all), all[0].ID)
	}

	site, err := store.GetProjectDeployments("site", 10)
	if err != nil {
		t.Fatalf("list project: %v", err)
	}
	if len(site) != 2 || site[0].ID != "b" {
		t.Fatalf("unexpected site deployments: %+v", site)
	}

	summaries, err := store.GetProjectSummaries()
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	for _, s := range summaries {
		if s.ProjectName == "site" {
			if s.Total != 2 || s.ByStatus["success"] != 1 || s.ByStatus["cancelled"] != 1 {
				t.Fatalf("unexpected site summary: %+v", s)
			}
			if s.Latest == nil || s.Latest.ID != "b" {
				t.Fatalf("expected latest site deployment b, got %+v", s.Latest)
			}
		}
	}
}

func TestMarkInterrupted(t *testing.T) {
	store := newTestStorage(t)
	now := time.Now()
	if _, err := store.CreateDeployment("stale", "site", "", "", now); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateDeployment("done", "site", "", "", now); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.FinishDeployment("done", "success", 0, "", now, 0); err != nil {
		t.Fatalf("finish: %v", err)
	}

	n, err := store.MarkInterrupted()
	if err != nil {
		t.Fatalf("mark interrupted: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 interrupted deployment, got %d", n)
	}
	got, _ := store.GetDeployment("stale")
	if got.Status != StatusInterrupted {
		t.Fatalf("expected interrupted, got %s", got.Status)
	}
}

package runner

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingHistory struct {
	mu       sync.Mutex
	started  []string
	finished []Result
}

func (h *recordingHistory) RecordStart(jobID string, project Project, logPath string, startedAt time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = append(h.started, jobID)
	return nil
}

func (h *recordingHistory) RecordFinish(result Result) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished = append(h.finished, result)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Broadcast(eventType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func newTestService(t *testing.T) (*Service, *recordingNotifier, *recordingHistory, *recordingPublisher) {
	t.Helper()
	notifier := &recordingNotifier{}
	history := &recordingHistory{}
	events := &recordingPublisher{}
	sink := NewLogSink(t.TempDir())
	svc := &Service{
		Registry: NewRegistry(),
		Deployer: &Deployer{Sink: sink, Notifier: notifier, KillGrace: 200 * time.Millisecond},
		Sink:     sink,
		Notifier: notifier,
		History:  history,
		Events:   events,
	}
	return svc, notifier, history, events
}

func TestTriggerScenarioBuildOK(t *testing.T) {
	requireShell(t)
	svc, notifier, history, events := newTestService(t)
	project := newProject(t, t.TempDir(), "site", "apps/site", "echo 'Build OK'\n")

	res, err := svc.Trigger(context.Background(), TriggerRequest{Project: project, BaseURL: "http://deploy.example:5001/"})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	today := time.Now().Format("20060102")
	wantPath := "deployment_logs/site/" + today + "_site.log"
	if res.LogPath != wantPath {
		t.Fatalf("expected %s, got %s", wantPath, res.LogPath)
	}
	if res.LogURL != "http://deploy.example:5001/logs/"+wantPath {
		t.Fatalf("unexpected log url %s", res.LogURL)
	}

	job, ok := svc.Registry.Last("site")
	if !ok || job.ID != res.JobID {
		t.Fatalf("expected registered job %s", res.JobID)
	}
	job.Wait()

	lines := logLines(readFile(t, svc.Sink.Abs(res.LogPath)))
	if len(lines) != 1 || !strings.HasSuffix(lines[0], "Build OK") {
		t.Fatalf("unexpected log %q", lines)
	}
	if n := len(notifier.withSubject("Deployment Failure")); n != 0 {
		t.Fatalf("expected no failure email, got %d", n)
	}
	if len(notifier.withSubject("Deployment Started")) != 1 || len(notifier.withSubject("Deployment Initiated")) != 1 {
		t.Fatalf("expected start and initiated notifications, got %+v", notifier.messages)
	}
	initiated := notifier.withSubject("Deployment Initiated")[0]
	if !strings.Contains(initiated.body, res.LogURL) {
		t.Fatalf("expected log url in initiated email, got %q", initiated.body)
	}

	history.mu.Lock()
	if len(history.started) != 1 || history.started[0] != res.JobID {
		t.Fatalf("unexpected history starts %v", history.started)
	}
	if len(history.finished) != 1 || history.finished[0].Status != StatusSuccess || history.finished[0].JobID != res.JobID {
		t.Fatalf("unexpected history results %+v", history.finished)
	}
	history.mu.Unlock()

	events.mu.Lock()
	defer events.mu.Unlock()
	if strings.Join(events.events, ",") != "deployment_started,deployment_finished" {
		t.Fatalf("unexpected events %v", events.events)
	}
}

func TestTriggerTwiceSupersedesAndSharesLogFile(t *testing.T) {
	requireShell(t)
	svc, notifier, history, events := newTestService(t)
	project := newProject(t, t.TempDir(), "site", "apps/site", "echo \"attempt $$\"\nsleep 30\n")

	first, err := svc.Trigger(context.Background(), TriggerRequest{Project: project, BaseURL: "http://localhost"})
	if err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	firstJob, _ := svc.Registry.Live("site")
	waitFor(t, 5*time.Second, func() bool {
		return strings.Contains(readFile(t, svc.Sink.Abs(first.LogPath)), "attempt")
	})

	second, err := svc.Trigger(context.Background(), TriggerRequest{Project: project, BaseURL: "http://localhost"})
	if err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	if firstJob.Live() {
		t.Fatalf("first job must be finished once the second is registered")
	}
	if first.LogPath != second.LogPath {
		t.Fatalf("expected both attempts to share one log file, got %s and %s", first.LogPath, second.LogPath)
	}
	if n := len(svc.Registry.LiveJobs()); n != 1 {
		t.Fatalf("expected one live job, got %d", n)
	}

	waitFor(t, 5*time.Second, func() bool {
		return strings.Count(readFile(t, svc.Sink.Abs(first.LogPath)), "attempt") == 2
	})
	if err := svc.Registry.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if n := len(notifier.withSubject("Deployment Failure")); n != 0 {
		t.Fatalf("superseded job must not send failure email, got %d", n)
	}
	history.mu.Lock()
	if len(history.finished) != 2 || history.finished[0].Status != StatusCancelled {
		t.Fatalf("expected first job recorded as cancelled, got %+v", history.finished)
	}
	history.mu.Unlock()

	events.mu.Lock()
	defer events.mu.Unlock()
	if events.events[1] != "deployment_cancelled" {
		t.Fatalf("expected cancellation event for first job, got %v", events.events)
	}
}

func TestTriggerSurfacesRegistryFailure(t *testing.T) {
	requireShell(t)
	svc, notifier, _, _ := newTestService(t)
	svc.Registry = NewRegistry(WithMaxLive(1))
	home := t.TempDir()
	busy := newProject(t, home, "busy", "busy", "sleep 30\n")
	other := newProject(t, home, "other", "other", "echo hi\n")

	if _, err := svc.Trigger(context.Background(), TriggerRequest{Project: busy}); err != nil {
		t.Fatalf("trigger busy: %v", err)
	}
	if _, err := svc.Trigger(context.Background(), TriggerRequest{Project: other}); err == nil {
		t.Fatalf("expected registry refusal")
	}
	if _, ok := svc.Registry.Live("other"); ok {
		t.Fatalf("refused trigger left a live job")
	}
	if n := len(notifier.withSubject("Deployment Failure")); n != 1 {
		t.Fatalf("expected one failure notification, got %d", n)
	}
	if err := svc.Registry.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

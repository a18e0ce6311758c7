package runner

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification
}

type notification struct {
	subject string
	body    string
}

func (n *recordingNotifier) Notify(subject, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, notification{subject: subject, body: body})
}

func (n *recordingNotifier) withSubject(subject string) []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification
	for _, m := range n.messages {
		if m.subject == subject {
			out = append(out, m)
		}
	}
	return out
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("deployment scripts need a POSIX shell")
	}
}

// newProject creates home/<rel>/deploy.sh with the given body.
func newProject(t *testing.T, home, name, rel, script string) Project {
	t.Helper()
	dir := filepath.Join(home, rel)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir project: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, DefaultScript), []byte(script), 0755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return Project{Name: name, Path: dir, Script: DefaultScript}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func logLines(content string) []string {
	trimmed := strings.TrimRight(content, "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

package runner

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLogSinkPath(t *testing.T) {
	base := t.TempDir()
	sink := NewLogSink(base)
	sink.Now = func() time.Time { return time.Date(2026, 10, 14, 23, 59, 0, 0, time.Local) }

	rel, err := sink.Path("site")
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if rel != "deployment_logs/site/20261014_site.log" {
		t.Fatalf("unexpected path %q", rel)
	}
	info, err := os.Stat(filepath.Join(base, "deployment_logs", "site"))
	if err != nil || !info.IsDir() {
		t.Fatalf("expected project log directory to exist: %v", err)
	}

	again, err := sink.Path("site")
	if err != nil || again != rel {
		t.Fatalf("expected idempotent path, got %q (%v)", again, err)
	}
	if got := sink.Abs(rel); got != filepath.Join(base, "deployment_logs", "site", "20261014_site.log") {
		t.Fatalf("unexpected abs path %q", got)
	}
}

func TestLogSinkAppendNeverTruncates(t *testing.T) {
	sink := NewLogSink(t.TempDir())
	rel, err := sink.Path("site")
	if err != nil {
		t.Fatalf("path: %v", err)
	}

	for _, line := range []string{"first\n", "second\n"} {
		f, err := sink.OpenAppend(rel)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if _, err := f.WriteString(line); err != nil {
			t.Fatalf("write: %v", err)
		}
		f.Close()
	}

	if got := readFile(t, sink.Abs(rel)); got != "first\nsecond\n" {
		t.Fatalf("expected both writes to survive, got %q", got)
	}
}

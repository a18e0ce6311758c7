package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogDirName is the directory, relative to the sink base, holding all deployment logs.
const LogDirName = "deployment_logs"

// LogSink maps a project and a day to its append-only log file.
type LogSink struct {
	BaseDir string
	Now     func() time.Time
}

// NewLogSink creates a sink rooted at baseDir.
func NewLogSink(baseDir string) *LogSink {
	return &LogSink{BaseDir: baseDir, Now: time.Now}
}

// Path returns deployment_logs/<project>/<YYYYMMDD>_<project>.log for today,
// creating the project directory if needed.
func (s *LogSink) Path(project string) (string, error) {
	dir := filepath.Join(LogDirName, project)
	if err := os.MkdirAll(filepath.Join(s.BaseDir, dir), 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s.log", s.now().Format("20060102"), project)
	return filepath.ToSlash(filepath.Join(dir, name)), nil
}

// Abs resolves a relative log path against the base directory.
func (s *LogSink) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(s.BaseDir, filepath.FromSlash(rel))
}

// OpenAppend opens the log for appending. Existing content is never truncated.
func (s *LogSink) OpenAppend(rel string) (*os.File, error) {
	abs := s.Abs(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// Open opens a previously written log for reading.
func (s *LogSink) Open(rel string) (*os.File, error) {
	return os.Open(s.Abs(rel))
}

func (s *LogSink) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

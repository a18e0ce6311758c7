package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultShell     = "sh"
	defaultKillGrace = 5 * time.Second
	timestampFormat  = "[2006-01-02 15:04:05] "

	drainGrace        = 500 * time.Millisecond
	groupPollInterval = 20 * time.Millisecond
)

var (
	ErrProjectDirMissing = errors.New("project directory does not exist")
	ErrScriptMissing     = errors.New("deployment script not found")
)

// Deployer runs a project's deployment script and streams its output to the log sink.
type Deployer struct {
	Sink      *LogSink
	Notifier  Notifier
	Logger    *slog.Logger
	Shell     string        // interpreter for the script, "sh" by default
	KillGrace time.Duration // time between SIGTERM and SIGKILL to the process group on cancellation
	Echo      io.Writer     // optional mirror of captured output
	Now       func() time.Time
}

// Run executes the deployment once. It always returns with the process
// reaped and the log file closed.
func (d *Deployer) Run(ctx context.Context, project Project, logPath string) Result {
	result := Result{
		Project:   project.Name,
		Path:      project.Path,
		LogPath:   logPath,
		StartedAt: d.now(),
	}

	logFile, err := d.Sink.OpenAppend(logPath)
	if err != nil {
		return d.finish(d.launchFailed(result, err))
	}
	defer logFile.Close()

	if ctx.Err() != nil {
		result.Status = StatusCancelled
		return d.finish(result)
	}

	cmd, stdout, writer, err := d.prepare(project, logPath)
	if err != nil {
		return d.finish(d.launchFailed(result, err))
	}
	if err := cmd.Start(); err != nil {
		_ = writer.Close()
		_ = stdout.Close()
		return d.finish(d.launchFailed(result, fmt.Errorf("failed to start deployment script: %w", err)))
	}
	// The child holds its own copy of the write end.
	_ = writer.Close()
	result.Launched = true
	d.logger().Info("deployment script started", "project", project.Name, "path", project.Path, "pid", cmd.Process.Pid, "log", d.Sink.Abs(logPath))

	exited := make(chan struct{})
	var waitErr error
	go func() {
		waitErr = cmd.Wait()
		close(exited)
	}()

	lines := make(chan string)
	stop := make(chan struct{})
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		pumpLines(stdout, lines, stop)
	}()

	cancelled, streamErr := d.stream(ctx, project, logFile, lines, exited, stdout)
	close(stop)

	if cancelled || streamErr != nil {
		d.terminate(cmd.Process, exited)
	}
	<-exited
	_ = stdout.Close()
	<-pumpDone

	var exitErr *exec.ExitError
	switch {
	case cancelled:
		result.Status = StatusCancelled
		result.ExitCode = -1
	case streamErr != nil:
		result.Status = StatusFailed
		result.ExitCode = -1
		result.Err = streamErr
	case errors.As(waitErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		result.Status = StatusFailed
		result.Err = fmt.Errorf("deployment script exited with code %d", result.ExitCode)
	case waitErr != nil:
		result.Status = StatusFailed
		result.ExitCode = -1
		result.Err = fmt.Errorf("failed to wait for deployment script: %w", waitErr)
	default:
		result.Status = StatusSuccess
	}
	return d.finish(result)
}

// stream copies lines into the log until the script has exited and its
// output is drained, ctx is cancelled or a write fails. Output still held
// open by background children once the script exits is read for at most
// drainGrace.
func (d *Deployer) stream(ctx context.Context, project Project, logFile *os.File, lines <-chan string, exited <-chan struct{}, stdout *os.File) (bool, error) {
	for lines != nil || exited != nil {
		if ctx.Err() != nil {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return true, nil
		case <-exited:
			exited = nil
			_ = stdout.SetReadDeadline(time.Now().Add(drainGrace))
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if err := d.writeLine(logFile, line); err != nil {
				return false, fmt.Errorf("failed to write deployment log: %w", err)
			}
			d.logger().Debug("deployment output", "project", project.Name, "line", strings.TrimRight(line, "\n"))
		}
	}
	return false, nil
}

// prepare builds the command with stdout and stderr sharing one pipe. The
// caller closes the write end once the script has started.
func (d *Deployer) prepare(project Project, logPath string) (*exec.Cmd, *os.File, *os.File, error) {
	info, err := os.Stat(project.Path)
	if err != nil || !info.IsDir() {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrProjectDirMissing, project.Path)
	}
	script := project.Script
	if script == "" {
		script = DefaultScript
	}
	info, err = os.Stat(filepath.Join(project.Path, script))
	if err != nil || !info.Mode().IsRegular() {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrScriptMissing, filepath.Join(project.Path, script))
	}

	cmd := exec.Command(d.shell(), script)
	cmd.Dir = project.Path
	cmd.Env = append(os.Environ(),
		"DEPLOY_PROJECT="+project.Name,
		"DEPLOY_LOG="+d.Sink.Abs(logPath),
	)
	setProcessGroup(cmd)
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create output pipe: %w", err)
	}
	cmd.Stdout = w
	cmd.Stderr = w
	return cmd, r, w, nil
}

// writeLine writes one timestamped line straight to the file descriptor.
func (d *Deployer) writeLine(logFile *os.File, line string) error {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	entry := d.now().Format(timestampFormat) + line
	if _, err := logFile.WriteString(entry); err != nil {
		return err
	}
	if d.Echo != nil {
		_, _ = io.WriteString(d.Echo, entry)
	}
	return nil
}

// terminate sends SIGTERM to the script's process group and kills the group
// once the grace period ends. It returns when the group is gone, or right
// after the kill.
func (d *Deployer) terminate(p *os.Process, exited <-chan struct{}) {
	if err := terminateGroup(p); err != nil {
		_ = killGroup(p)
		return
	}
	grace := d.KillGrace
	if grace <= 0 {
		grace = defaultKillGrace
	}
	deadline := time.NewTimer(grace)
	defer deadline.Stop()

	select {
	case <-exited:
	case <-deadline.C:
		_ = killGroup(p)
		return
	}

	tick := time.NewTicker(groupPollInterval)
	defer tick.Stop()
	for groupAlive(p) {
		select {
		case <-deadline.C:
			_ = killGroup(p)
			return
		case <-tick.C:
		}
	}
}

func (d *Deployer) launchFailed(result Result, err error) Result {
	result.Status = StatusFailed
	result.ExitCode = -1
	result.Err = err
	return result
}

// finish logs the outcome and notifies the operator about failures.
func (d *Deployer) finish(result Result) Result {
	result.FinishedAt = d.now()
	log := d.logger().With("project", result.Project, "log", result.LogPath)
	switch result.Status {
	case StatusSuccess:
		log.Info("deployment succeeded")
	case StatusCancelled:
		log.Info("deployment cancelled")
	default:
		log.Error("deployment failed", "exit_code", result.ExitCode, "error", result.Err)
		if d.Notifier != nil {
			d.Notifier.Notify("Deployment Failure", failureBody(result))
		}
	}
	return result
}

func failureBody(result Result) string {
	if !result.Launched {
		return fmt.Sprintf("%s deployment could not be launched.\nError: %v\nProject path: %s\nLog: %s",
			result.Project, result.Err, result.Path, result.LogPath)
	}
	return fmt.Sprintf("%s deployment failed with exit code %d.\nError: %v\nProject path: %s\nLog: %s",
		result.Project, result.ExitCode, result.Err, result.Path, result.LogPath)
}

func (d *Deployer) shell() string {
	if d.Shell != "" {
		return d.Shell
	}
	return defaultShell
}

func (d *Deployer) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deployer) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return discardLogger
}

// pumpLines reads r line by line until EOF, a read error or stop is closed.
func pumpLines(r io.Reader, lines chan<- string, stop <-chan struct{}) {
	defer close(lines)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.ToValidUTF8(strings.ReplaceAll(line, "\r\n", "\n"), "\uFFFD")
			select {
			case lines <- line:
			case <-stop:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"

	"librabench/internal/suite"
)

// Result is the observable outcome of one analyzer invocation.
//
// A non-zero exit code is a result, not an error: the analyzer failing on a
// parameter combination is exactly the kind of data a benchmark run exists to
// collect. Errors are reserved for the harness failing to observe the run at
// all (log file unwritable, binary missing).
type Result struct {
	// ExitCode is the analyzer's exit code. Zero on success.
	ExitCode int

	// Duration is wall-clock time from process start to exit.
	Duration time.Duration

	// LogPath is the file the invocation's output was captured into.
	LogPath string

	// Canceled reports that the run was cut short by context cancellation
	// and the process group was killed.
	Canceled bool
}

// Executor runs analyzer invocations one at a time.
//
// Output handling follows the tee discipline of the original experiment
// scripts: the analyzer's stdout is duplicated to Console and to the
// invocation's log file; stderr goes verbatim into the same log so failure
// output is never lost, and is mirrored to ConsoleErr when set.
//
// Unlike an isolated task runner, the executor passes the host environment
// through unchanged: the analyzer is a real tool that may need PATH, HOME,
// and whatever its own runtime requires.
type Executor struct {
	// Binary is the analyzer executable path.
	Binary string

	// WorkDir is the working directory for every invocation.
	WorkDir string

	// Console receives a live copy of each invocation's stdout.
	// Nil disables mirroring.
	Console io.Writer

	// ConsoleErr receives a live copy of each invocation's stderr.
	// Nil disables mirroring.
	ConsoleErr io.Writer

	Log *zap.Logger
}

// NewExecutor creates an Executor that mirrors analyzer output to stdout and
// stderr of the current process.
func NewExecutor(binary, workDir string, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		Binary:     binary,
		WorkDir:    workDir,
		Console:    os.Stdout,
		ConsoleErr: os.Stderr,
		Log:        log,
	}
}

// Run executes one invocation, capturing output into logPath.
//
// The process is placed in its own group so cancellation kills the whole
// analyzer tree (the analyzer forks workers under --cpu). On cancellation the
// partial log is kept and the result is marked Canceled.
func (e *Executor) Run(ctx context.Context, inv suite.Invocation, input, script, logPath string) (*Result, error) {
	if e.Binary == "" {
		return nil, errors.New("analyzer binary path is empty")
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating log file: %w", err)
	}
	defer logFile.Close()

	args := BuildArgs(input, script, inv.Params)
	cmd := exec.CommandContext(ctx, e.Binary, args...)
	cmd.Dir = e.WorkDir
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	cmd.Stdout = teeWriter(logFile, e.Console)
	cmd.Stderr = teeWriter(logFile, e.ConsoleErr)

	e.Log.Info("starting analyzer invocation",
		zap.String("invocation", inv.Name),
		zap.Strings("args", args),
		zap.String("log", logPath),
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", e.Binary, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	canceled := false
	select {
	case <-ctx.Done():
		// Kill the whole process group, then wait for Wait to observe exit.
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		waitErr = <-done
		canceled = true
	case waitErr = <-done:
	}
	elapsed := time.Since(start)

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else if !canceled {
			return nil, fmt.Errorf("running %s: %w", e.Binary, waitErr)
		} else {
			exitCode = -1
		}
	}

	if err := logFile.Sync(); err != nil {
		return nil, fmt.Errorf("syncing log file: %w", err)
	}

	e.Log.Info("analyzer invocation finished",
		zap.String("invocation", inv.Name),
		zap.Int("exit_code", exitCode),
		zap.Duration("duration", elapsed),
		zap.Bool("canceled", canceled),
	)

	return &Result{
		ExitCode: exitCode,
		Duration: elapsed,
		LogPath:  logPath,
		Canceled: canceled,
	}, nil
}

// teeWriter duplicates writes to the log file and, when present, a console
// mirror. The log file is the primary sink; mirror errors are ignored so a
// closed terminal never aborts a capture.
func teeWriter(logFile io.Writer, mirror io.Writer) io.Writer {
	if mirror == nil {
		return logFile
	}
	return io.MultiWriter(logFile, &bestEffortWriter{w: mirror})
}

// bestEffortWriter swallows mirror errors. io.MultiWriter stops on the first
// failing writer, and losing the terminal must not lose the log.
type bestEffortWriter struct {
	w io.Writer
}

func (b *bestEffortWriter) Write(p []byte) (int, error) {
	_, _ = b.w.Write(p)
	return len(p), nil
}

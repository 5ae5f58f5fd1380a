// Package build runs the project's external build command.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// SpawnFailedError reports that the build process could not be started.
type SpawnFailedError struct {
	Command string
	Err     error
}

func (e *SpawnFailedError) Error() string {
	return fmt.Sprintf("starting %s: %v", e.Command, e.Err)
}

func (e *SpawnFailedError) Unwrap() error { return e.Err }

// BuildFailedError reports that the build process exited unsuccessfully.
type BuildFailedError struct {
	Command  string
	ExitCode int

	// TimedOut is set when the process was killed by the build timeout.
	TimedOut bool
}

func (e *BuildFailedError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s timed out (exit code %d)", e.Command, e.ExitCode)
	}

	return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
}

// waitDelay bounds how long Wait keeps draining output after a killed
// build, since grandchildren may hold the pipes open.
const waitDelay = 2 * time.Second

// Runner spawns the build command. It runs in Dir with the current
// environment and forwards output to Stdout and Stderr. Callers are
// responsible for never running two builds at once.
type Runner struct {
	// Command is the executable, resolved through PATH.
	Command string

	// Args are passed to Command verbatim.
	Args []string

	// Dir is the working directory, typically the project root.
	Dir string

	// Timeout kills the build after the given duration. Zero disables it.
	Timeout time.Duration

	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// NewRunner returns a Runner for argv (command followed by arguments) that
// writes to the process's own stdout and stderr.
func NewRunner(argv []string, dir string) *Runner {
	r := &Runner{
		Dir:    dir,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: slog.Default(),
	}

	if len(argv) > 0 {
		r.Command = argv[0]
		r.Args = argv[1:]
	}

	return r
}

// String returns the command line for display.
func (r *Runner) String() string {
	return strings.TrimSpace(r.Command + " " + strings.Join(r.Args, " "))
}

// Run executes the build and blocks until it exits. It returns nil on exit
// code 0, *SpawnFailedError when the process cannot start and
// *BuildFailedError otherwise.
func (r *Runner) Run(ctx context.Context) error {
	if r.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.Command, r.Args...) //nolint:gosec
	cmd.Dir = r.Dir
	cmd.Env = os.Environ()
	cmd.Stdin = nil
	cmd.Stdout = orDiscard(r.Stdout)
	cmd.Stderr = orDiscard(r.Stderr)
	cmd.WaitDelay = waitDelay

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()

	if err := cmd.Start(); err != nil {
		return &SpawnFailedError{Command: r.String(), Err: err}
	}

	logger.Debug("build started", slog.String("command", r.String()), slog.Int("pid", cmd.Process.Pid))

	err := cmd.Wait()

	logger.Debug("build finished",
		slog.String("command", r.String()),
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("exitCode", cmd.ProcessState.ExitCode()),
	)

	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &BuildFailedError{
			Command:  r.String(),
			ExitCode: exitErr.ExitCode(),
			TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
		}
	}

	return fmt.Errorf("waiting for %s: %w", r.String(), err)
}

// Build implements the orchestrator's builder contract.
func (r *Runner) Build(ctx context.Context) error {
	return r.Run(ctx)
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}

	return w
}

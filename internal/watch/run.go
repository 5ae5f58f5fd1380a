package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/vibbit-dev/extreload/internal/logging"
	"github.com/vibbit-dev/extreload/internal/manifest"
	"github.com/vibbit-dev/extreload/internal/reload"
)

// startupReason labels the cycle queued when the watch starts.
const startupReason = "startup"

// Options configures the watch behaviour.
type Options struct {
	// Roots are the absolute paths to watch.
	Roots []string

	// Base is the project root that reasons are reported relative to.
	Base string

	// Debounce is the quiet period before triggering a rebuild.
	Debounce time.Duration

	Builder  Builder
	Reloader Reloader
	Target   reload.Target

	// Manifest tracks manifest changes between cycles. Optional.
	Manifest *manifest.Tracker

	// Endpoint and Version are shown in the startup summary.
	Endpoint string
	Version  string

	// Logger is used for structured logging.
	Logger *slog.Logger

	// Out is the writer for user-facing status messages.
	Out io.Writer

	// NoColor keeps status lines plain even on a terminal.
	NoColor bool
}

// DefaultOptions returns sensible default watch options.
func DefaultOptions() Options {
	return Options{
		Base:     ".",
		Debounce: 300 * time.Millisecond,
		Logger:   slog.Default(),
		Out:      os.Stderr,
	}
}

// Run arms the watches, queues a startup cycle and blocks until the context
// is cancelled or a SIGINT/SIGTERM signal is received. It fails only when no
// root can be watched; cycle failures are reported and the loop continues.
func Run(ctx context.Context, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Out == nil {
		opts.Out = io.Discard
	}

	if abs, err := filepath.Abs(opts.Base); err == nil {
		opts.Base = abs
	}

	console := logging.NewTerminalConsole(opts.Out, opts.NoColor)

	src, err := NewSource(opts.Roots, opts.Logger)
	if err != nil {
		return fmt.Errorf("watching roots: %w", err)
	}
	defer src.Close()

	// Trap SIGINT / SIGTERM for graceful shutdown.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The scheduler and orchestrator refer to each other: a rerun queued
	// during a cycle goes back through the quiet period.
	var sched *Scheduler

	orch := NewOrchestrator(OrchestratorOptions{
		Builder:  opts.Builder,
		Reloader: opts.Reloader,
		Target:   opts.Target,
		Manifest: opts.Manifest,
		Context:  sigCtx,
		Console:  console,
		Logger:   opts.Logger,
		Requeue:  func(reason string) { sched.Record(reason) },
	})

	sched = NewScheduler(opts.Debounce, orch.Trigger)

	printSummary(console, opts, src.Roots())

	sched.Record(startupReason)

	runErr := src.Run(sigCtx, func(ev ChangeEvent) {
		sched.Record(Normalize(opts.Base, ev))
	})

	sched.Stop()
	_ = src.Close()
	orch.Close()
	orch.Wait()

	console.Println("\nStopped extension watch reload.")

	return runErr
}

func printSummary(console *logging.Console, opts Options, roots []string) {
	rel := make([]string, 0, len(roots))
	for _, r := range roots {
		if p, err := filepath.Rel(opts.Base, r); err == nil {
			rel = append(rel, filepath.ToSlash(p))
		} else {
			rel = append(rel, r)
		}
	}

	console.Println("Watching for extension edits...")
	console.Println("- Browser URL:", opts.Endpoint)
	console.Println("- Extension lookup:", opts.Target.String())

	if opts.Version != "" {
		console.Println("- Extension version:", opts.Version)
	}

	console.Println("- Watch targets:", strings.Join(rel, ", "))
	console.Println(fmt.Sprintf("- Debounce: %dms", opts.Debounce.Milliseconds()))
	console.Println("Press Ctrl+C to stop.")
}

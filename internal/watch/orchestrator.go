package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vibbit-dev/extreload/internal/logging"
	"github.com/vibbit-dev/extreload/internal/manifest"
	"github.com/vibbit-dev/extreload/internal/reload"
)

// State is the externally visible state of an Orchestrator.
type State int

// Orchestrator states.
const (
	Idle State = iota
	Building
	BuildingRerunQueued
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Building:
		return "building"
	case BuildingRerunQueued:
		return "building+rerun-queued"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Reasons logged for cycles that have no recorded change.
const (
	manualReason = "manual trigger"
	queuedReason = "queued-change"
)

var (
	// ErrCycleInProgress is returned by RunOnce while another cycle runs.
	ErrCycleInProgress = errors.New("a build/reload cycle is already running")

	// ErrClosed is returned by RunOnce after Close.
	ErrClosed = errors.New("orchestrator is closed")
)

// Builder runs the external build.
type Builder interface {
	Build(ctx context.Context) error
}

// Reloader reloads the extension in the browser.
type Reloader interface {
	Reload(ctx context.Context, target reload.Target) (*reload.Outcome, error)
}

// CycleResult summarises one finished cycle.
type CycleResult struct {
	Reasons []string
	Outcome *reload.Outcome
	Err     error
}

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	Builder  Builder
	Reloader Reloader
	Target   reload.Target

	// Manifest, when set, is re-read after every successful build and
	// changes are printed.
	Manifest *manifest.Tracker

	// Context is the parent of every cycle. Cancelling it aborts the
	// running build and reload.
	Context context.Context

	Console *logging.Console
	Logger  *slog.Logger

	// OnCycle is called after every cycle, successful or not.
	OnCycle func(CycleResult)

	// Requeue, when set, receives the reasons of a queued rerun once the
	// running cycle ends, instead of the rerun starting at once. Wiring it
	// to Scheduler.Record lets changes still inside their quiet period join
	// the same follow-up cycle.
	Requeue func(reason string)
}

// Orchestrator serialises build/reload cycles. At most one cycle runs at a
// time; triggers received meanwhile collapse into exactly one follow-up.
type Orchestrator struct {
	opts OrchestratorOptions

	mu       sync.Mutex
	building bool
	rerun    bool
	closed   bool
	queued   []string
	seen     map[string]struct{}

	wg sync.WaitGroup
}

// NewOrchestrator returns an idle Orchestrator.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	if opts.Console == nil {
		opts.Console = logging.NewConsole(nil)
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Orchestrator{opts: opts, seen: make(map[string]struct{})}
}

// State reports whether a cycle is running and whether a rerun is queued.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case !o.building:
		return Idle
	case o.rerun:
		return BuildingRerunQueued
	default:
		return Building
	}
}

// Trigger starts a cycle for reasons, or queues a rerun when one is already
// running. It never blocks on the cycle itself.
func (o *Orchestrator) Trigger(reasons []string) {
	o.mu.Lock()

	if o.closed {
		o.mu.Unlock()
		o.opts.Logger.Debug("orchestrator closed, trigger ignored", slog.Int("reasons", len(reasons)))

		return
	}

	if o.building {
		o.rerun = true
		o.enqueueLocked(reasons)
		o.mu.Unlock()
		o.opts.Logger.Debug("cycle in progress, rerun queued", slog.Int("reasons", len(reasons)))

		return
	}

	o.building = true
	o.wg.Add(1)
	o.mu.Unlock()

	go o.loop(reasons)
}

// RunOnce runs a single cycle synchronously and returns its error. It fails
// with ErrCycleInProgress if a cycle is already running.
func (o *Orchestrator) RunOnce(ctx context.Context, reasons []string) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}

	if o.building {
		o.mu.Unlock()
		return ErrCycleInProgress
	}

	o.building = true
	o.wg.Add(1)
	o.mu.Unlock()

	err := o.cycle(ctx, reasons)

	if next, ok := o.next(); ok {
		go o.loop(next)
	} else {
		o.wg.Done()
	}

	return err
}

// Close makes every later Trigger a no-op and drops a queued rerun. A
// cycle that is already running finishes; use Wait to block until it has.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
}

// Wait blocks until no cycle is running or queued.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) loop(reasons []string) {
	defer o.wg.Done()

	for {
		_ = o.cycle(o.opts.Context, reasons)

		next, ok := o.next()
		if !ok {
			return
		}

		reasons = next
	}
}

// next finishes the current cycle. It returns the queued reasons and true
// when a rerun should start now. Otherwise the orchestrator is marked idle,
// and a queued rerun, if any, is handed to Requeue.
func (o *Orchestrator) next() ([]string, bool) {
	o.mu.Lock()

	if !o.rerun || o.closed {
		o.building = false
		o.rerun = false
		o.queued = nil
		o.mu.Unlock()

		return nil, false
	}

	o.rerun = false
	reasons := o.queued
	o.queued = nil
	o.seen = make(map[string]struct{})

	if len(reasons) == 0 {
		reasons = []string{queuedReason}
	}

	if o.opts.Requeue == nil {
		o.mu.Unlock()
		return reasons, true
	}

	o.building = false
	o.mu.Unlock()

	for _, r := range reasons {
		o.opts.Requeue(r)
	}

	return nil, false
}

func (o *Orchestrator) enqueueLocked(reasons []string) {
	for _, r := range reasons {
		if _, ok := o.seen[r]; ok {
			continue
		}

		o.seen[r] = struct{}{}
		o.queued = append(o.queued, r)
	}
}

// cycle builds, then reloads. Failures are reported and returned but never
// escape as panics.
func (o *Orchestrator) cycle(ctx context.Context, reasons []string) (err error) {
	result := CycleResult{Reasons: reasons}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
			o.opts.Logger.Error("build/reload cycle panicked", slog.Any("error", r))
		}

		if err != nil {
			o.opts.Console.Failf("Build/reload failed: %v", err)
		}

		result.Err = err

		if o.opts.OnCycle != nil {
			o.opts.OnCycle(result)
		}
	}()

	label := strings.Join(reasons, ", ")
	if label == "" {
		label = manualReason
	}

	o.opts.Console.Printf("Change detected: %s", label)

	if err := o.opts.Builder.Build(ctx); err != nil {
		return err
	}

	o.reportManifest()

	outcome, err := o.opts.Reloader.Reload(ctx, o.opts.Target)
	if err != nil {
		return err
	}

	result.Outcome = outcome
	o.opts.Console.Successf("Extension reloaded (%s, %s).", outcome.Name, outcome.ID)

	return nil
}

func (o *Orchestrator) reportManifest() {
	if o.opts.Manifest == nil {
		return
	}

	change, err := o.opts.Manifest.Check()
	if err != nil {
		o.opts.Logger.Warn("re-reading manifest", slog.String("error", err.Error()))
		return
	}

	if change == nil {
		return
	}

	if change.VersionChanged() {
		o.opts.Console.Printf("Manifest changed (version %s -> %s):", change.OldVersion, change.NewVersion)
	} else {
		o.opts.Console.Printf("Manifest changed:")
	}

	o.opts.Console.Block(change.Diff)

	if change.Regressed {
		o.opts.Logger.Warn("manifest version decreased",
			slog.String("from", change.OldVersion), slog.String("to", change.NewVersion))
	}

	if change.NameChanged && o.opts.Target.ID == "" {
		o.opts.Logger.Warn("manifest name changed; the extension is still looked up by its startup name",
			slog.String("lookup", o.opts.Target.Name))
	}
}

package watch

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibbit-dev/extreload/internal/logging"
	"github.com/vibbit-dev/extreload/internal/reload"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writes of Run.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func newProject(t *testing.T) (dir, workJS, ext string) {
	t.Helper()

	dir = t.TempDir()
	workJS = filepath.Join(dir, "work.js")
	ext = filepath.Join(dir, "extension")

	require.NoError(t, os.WriteFile(workJS, []byte("// v1"), 0o644))
	require.NoError(t, os.MkdirAll(ext, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ext, "manifest.json"), []byte(`{"name":"Vibbit"}`), 0o644))

	return dir, workJS, ext
}

func testOptions(dir string, roots ...string) Options {
	opts := DefaultOptions()
	opts.Roots = roots
	opts.Base = dir
	opts.Debounce = 50 * time.Millisecond
	opts.Target = reload.Target{Name: "Vibbit"}
	opts.Endpoint = "http://localhost:9222"
	opts.Logger = logging.Discard()
	opts.Out = io.Discard

	return opts
}

// ---------------------------------------------------------------------------
// Run (integration)
// ---------------------------------------------------------------------------

func TestRun_StartupCycleAndSummary(t *testing.T) {
	dir, workJS, ext := newProject(t)

	out := &syncBuffer{}
	b := &fakeBuilder{}

	opts := testOptions(dir, workJS, ext)
	opts.Builder = b
	opts.Reloader = &fakeReloader{}
	opts.Version = "1.2.3"
	opts.Out = out

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, opts) }()

	require.Eventually(t, func() bool { return b.Calls() >= 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not shut down in time")
	}

	text := out.String()
	assert.Contains(t, text, "Watching for extension edits...")
	assert.Contains(t, text, "- Browser URL: http://localhost:9222")
	assert.Contains(t, text, "- Extension lookup: Vibbit")
	assert.Contains(t, text, "- Extension version: 1.2.3")
	assert.Contains(t, text, "- Watch targets: work.js, extension")
	assert.Contains(t, text, "- Debounce: 50ms")
	assert.Contains(t, text, "Press Ctrl+C to stop.")
	assert.Contains(t, text, "Change detected: startup")
	assert.Contains(t, text, "Extension reloaded (Vibbit, "+vibbitID+").")
	assert.Contains(t, text, "Stopped extension watch reload.")
}

func TestRun_FileChangeTriggersRebuild(t *testing.T) {
	dir, workJS, ext := newProject(t)

	b := &fakeBuilder{}
	r := &fakeReloader{}

	opts := testOptions(dir, workJS, ext)
	opts.Builder = b
	opts.Reloader = r

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, opts) }()

	// Wait for the startup cycle.
	require.Eventually(t, func() bool { return r.Calls() >= 1 }, 2*time.Second, 10*time.Millisecond)
	initial := b.Calls()

	require.NoError(t, os.WriteFile(workJS, []byte("// v2"), 0o644))

	require.Eventually(t, func() bool { return b.Calls() > initial }, 2*time.Second, 10*time.Millisecond,
		"file change should trigger rebuild")

	cancel()
	<-done
}

func TestRun_BurstProducesSingleCycle(t *testing.T) {
	dir, workJS, ext := newProject(t)

	b := &fakeBuilder{}

	opts := testOptions(dir, workJS, ext)
	opts.Debounce = 150 * time.Millisecond
	opts.Builder = b
	opts.Reloader = &fakeReloader{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, opts) }()

	require.Eventually(t, func() bool { return b.Calls() == 1 }, 2*time.Second, 10*time.Millisecond)
	// Let the startup cycle settle before the burst.
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(ext, "content.js"), []byte{byte('a' + i)}, 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return b.Calls() == 2 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 2, b.Calls(), "a burst within the quiet period yields one cycle")

	cancel()
	<-done
}

func TestRun_FailedCycleKeepsWatching(t *testing.T) {
	dir, workJS, ext := newProject(t)

	out := &syncBuffer{}
	b := &fakeBuilder{}
	r := &fakeReloader{err: &reload.TargetNotFoundError{Target: reload.Target{Name: "Vibbit"}}}

	opts := testOptions(dir, workJS, ext)
	opts.Builder = b
	opts.Reloader = r
	opts.Out = out

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, opts) }()

	require.Eventually(t, func() bool { return r.Calls() >= 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(workJS, []byte("// v2"), 0o644))
	require.Eventually(t, func() bool { return r.Calls() >= 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
	assert.Contains(t, out.String(), "Build/reload failed: extension named 'Vibbit' not found")
}

// ---------------------------------------------------------------------------
// Run error paths
// ---------------------------------------------------------------------------

func TestRun_InvalidRoots(t *testing.T) {
	opts := testOptions(t.TempDir(), "/nonexistent/work.js", "/nonexistent/extension")
	opts.Builder = &fakeBuilder{}
	opts.Reloader = &fakeReloader{}

	err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoRoots)
	assert.Contains(t, err.Error(), "watching roots")
}

// ---------------------------------------------------------------------------
// DefaultOptions
// ---------------------------------------------------------------------------

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 300*time.Millisecond, opts.Debounce)
	assert.Equal(t, ".", opts.Base)
	assert.NotNil(t, opts.Logger)
	assert.NotNil(t, opts.Out)
}

package build

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newShellRunner(t *testing.T, script string) (*Runner, *bytes.Buffer) {
	t.Helper()

	var out bytes.Buffer

	r := NewRunner([]string{"sh", "-c", script}, t.TempDir())
	r.Stdout = &out
	r.Stderr = &out

	return r, &out
}

func TestNewRunner(t *testing.T) {
	r := NewRunner([]string{"npm", "run", "build"}, "/project")
	assert.Equal(t, "npm", r.Command)
	assert.Equal(t, []string{"run", "build"}, r.Args)
	assert.Equal(t, "/project", r.Dir)
	assert.Equal(t, "npm run build", r.String())
}

func TestRun_Success(t *testing.T) {
	r, out := newShellRunner(t, "echo built")

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, "built\n", out.String())
}

func TestRun_UsesProjectRootAndEnvironment(t *testing.T) {
	t.Setenv("EXTRELOAD_BUILD_TEST", "inherited")

	r, out := newShellRunner(t, `pwd; echo "$EXTRELOAD_BUILD_TEST"`)

	require.NoError(t, r.Run(context.Background()))

	dir, err := filepath.EvalSymlinks(r.Dir)
	require.NoError(t, err)
	assert.Contains(t, out.String(), dir)
	assert.Contains(t, out.String(), "inherited")
}

func TestRun_NonZeroExit(t *testing.T) {
	r, _ := newShellRunner(t, "exit 3")

	err := r.Run(context.Background())
	require.Error(t, err)

	var buildErr *BuildFailedError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, 3, buildErr.ExitCode)
	assert.False(t, buildErr.TimedOut)
	assert.Contains(t, err.Error(), "exited with code 3")
}

func TestRun_SpawnFailed(t *testing.T) {
	r := NewRunner([]string{"extreload-no-such-command-12345"}, t.TempDir())

	err := r.Run(context.Background())
	require.Error(t, err)

	var spawnErr *SpawnFailedError
	require.ErrorAs(t, err, &spawnErr)
	assert.True(t, errors.Is(err, spawnErr.Err))
}

func TestRun_MissingDirectory(t *testing.T) {
	r := NewRunner([]string{"sh", "-c", "true"}, filepath.Join(os.TempDir(), "extreload-missing-dir-12345"))

	var spawnErr *SpawnFailedError
	assert.ErrorAs(t, r.Run(context.Background()), &spawnErr)
}

func TestRun_Timeout(t *testing.T) {
	r, _ := newShellRunner(t, "exec sleep 5")
	r.Timeout = 100 * time.Millisecond

	start := time.Now()
	err := r.Run(context.Background())

	var buildErr *BuildFailedError
	require.ErrorAs(t, err, &buildErr)
	assert.True(t, buildErr.TimedOut)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestBuild_DelegatesToRun(t *testing.T) {
	r, _ := newShellRunner(t, "exit 0")
	assert.NoError(t, r.Build(context.Background()))
}

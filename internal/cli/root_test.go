package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand is a test helper that runs the CLI with the given args and
// captures both stdout and stderr.
func executeCommand(args ...string) (stdout, stderr string, err error) {
	cmd := NewRootCommand()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())

	return outBuf.String(), errBuf.String(), err
}

// ---------------------------------------------------------------------------
// Help output
// ---------------------------------------------------------------------------

func TestRootCommand_Help(t *testing.T) {
	stdout, _, err := executeCommand("--help")
	require.NoError(t, err)

	for _, sub := range []string{"watch", "build", "reload", "list", "config", "version", "completion"} {
		assert.Contains(t, stdout, sub, "help should mention %q subcommand", sub)
	}

	for _, flag := range []string{"--config", "--env-file", "--log-level", "--log-format", "--no-color", "--quiet"} {
		assert.Contains(t, stdout, flag, "help should mention %q flag", flag)
	}
}

func TestWatchCommand_HelpListsFlags(t *testing.T) {
	stdout, _, err := executeCommand("watch", "--help")
	require.NoError(t, err)

	for _, flag := range []string{
		"--devtools-url", "--extension-id", "--watch-paths", "--reload-debounce-ms",
		"--build-command", "--build-timeout", "--reload-timeout", "--project-root", "--manifest",
	} {
		assert.Contains(t, stdout, flag)
	}
}

// ---------------------------------------------------------------------------
// Unknown flags → exit code 2
// ---------------------------------------------------------------------------

func TestRootCommand_UnknownFlag(t *testing.T) {
	_, _, err := executeCommand("--nonexistent")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestRootCommand_SilenceErrors(t *testing.T) {
	_, stderr, err := executeCommand("--nonexistent")
	require.Error(t, err)
	assert.Empty(t, stderr, "cobra should not print errors to stderr (SilenceErrors)")
}

// ---------------------------------------------------------------------------
// Configuration errors → exit code 2
// ---------------------------------------------------------------------------

func TestRootCommand_InvalidConfig(t *testing.T) {
	_, _, err := executeCommand("--config", "/nonexistent/path.yaml", "config")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestRootCommand_InvalidLogLevel(t *testing.T) {
	_, _, err := executeCommand("--log-level", "trace", "config")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestRootCommand_InvalidLogFormat(t *testing.T) {
	_, _, err := executeCommand("--log-format", "xml", "config")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), "invalid log format")
}

func TestRootCommand_InvalidExtensionIDFromEnv(t *testing.T) {
	t.Setenv("VIBBIT_EXTENSION_ID", "not-an-id")

	_, _, err := executeCommand("config")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), "invalid extension-id")
}

func TestRootCommand_MissingExplicitEnvFile(t *testing.T) {
	_, _, err := executeCommand("--env-file", filepath.Join(t.TempDir(), "missing.env"), "config")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), "reading env file")
}

func TestRootCommand_EnvFileSeedsConfig(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "dev.env")
	require.NoError(t, os.WriteFile(envFile, []byte("VIBBIT_RELOAD_DEBOUNCE_MS=750\n"), 0o644))

	// gotenv writes into the process environment; restore it afterwards.
	t.Setenv("VIBBIT_RELOAD_DEBOUNCE_MS", "")
	require.NoError(t, os.Unsetenv("VIBBIT_RELOAD_DEBOUNCE_MS"))

	stdout, _, err := executeCommand("--env-file", envFile, "config")
	require.NoError(t, err)
	assert.Contains(t, stdout, "reload-debounce-ms: 750")
}

// ---------------------------------------------------------------------------
// ExitError
// ---------------------------------------------------------------------------

func TestExitError_ErrorWithMessage(t *testing.T) {
	err := &ExitError{Code: 1, Err: assert.AnError}
	assert.Contains(t, err.Error(), assert.AnError.Error())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestExitError_ErrorWithoutMessage(t *testing.T) {
	err := &ExitError{Code: 42}
	assert.Equal(t, "exit code 42", err.Error())
	assert.Nil(t, err.Unwrap())
}

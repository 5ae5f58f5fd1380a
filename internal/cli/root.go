// Package cli implements the cobra command tree for extreload.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vibbit-dev/extreload/internal/config"
	"github.com/vibbit-dev/extreload/internal/logging"
)

// ExitError wraps an error with a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute builds the command tree, runs it, and returns the exit code.
func Execute() int {
	cmd := NewRootCommand()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}

		return 1
	}

	return 0
}

// NewRootCommand constructs the top-level cobra.Command with all
// subcommands attached.
func NewRootCommand() *cobra.Command {
	var (
		cfgFile string
		envFile string
	)

	cmd := &cobra.Command{
		Use:   "extreload",
		Short: "Rebuild and hot-reload an unpacked browser extension on every edit",
		Long: `extreload watches the sources of an unpacked browser extension, runs the
project build after each burst of edits, and then reloads the extension in a
running Chromium-based browser through its remote debugging endpoint.

Start the browser with remote debugging enabled, for example
  chromium --remote-debugging-port=9222
then run "extreload watch" from the project root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.LoadEnvFile(envFile, cmd.Flags().Changed("env-file"))
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			cfg, err := config.Load(cmd, cfgFile)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			logger := logging.Setup(cfg)

			ctx := cmd.Context()
			ctx = config.NewContext(ctx, cfg)
			ctx = logging.NewContext(ctx, logger)
			cmd.SetContext(ctx)

			logger.Debug("configuration loaded",
				slog.String("logLevel", cfg.LogLevel),
				slog.String("logFormat", cfg.LogFormat),
				slog.String("configFile", cfg.ConfigFile),
				slog.Bool("envFileLoaded", loaded),
			)

			return nil
		},
	}

	// Global persistent flags.
	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: .extreload.yaml)")
	pf.StringVar(&envFile, "env-file", config.DefaultEnvFile, "dotenv file with VIBBIT_* variables")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text, json")
	pf.Bool("no-color", false, "disable colored output")
	pf.BoolP("quiet", "q", false, "suppress non-essential output")

	// Flag parsing errors return exit code 2.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Err: err}
	})

	// Register subcommands.
	cmd.AddCommand(
		newVersionCommand(),
		newWatchCommand(),
		newBuildCommand(),
		newReloadCommand(),
		newListCommand(),
		newConfigCommand(),
		newCompletionCommand(),
	)

	return cmd
}

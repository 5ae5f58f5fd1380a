package cli

import (
	"github.com/spf13/cobra"

	"github.com/vibbit-dev/extreload/internal/logging"
	"github.com/vibbit-dev/extreload/internal/watch"
)

func newBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run one build and reload cycle",
		Long: `Build runs the build command once and, if it succeeds, reloads the
extension. It exits non-zero when either step fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd)
		},
	}

	registerProjectFlags(cmd)
	registerBuildFlags(cmd)
	registerBrowserFlags(cmd)

	return cmd
}

func runBuild(cmd *cobra.Command) error {
	ctx := cmd.Context()

	p, err := loadProject(ctx)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	orch := watch.NewOrchestrator(watch.OrchestratorOptions{
		Builder:  p.runner(cmd.OutOrStdout(), cmd.ErrOrStderr()),
		Reloader: newReloadClient(p.cfg, p.logger),
		Target:   p.target(),
		Context:  ctx,
		Console:  logging.NewTerminalConsole(cmd.ErrOrStderr(), p.cfg.NoColor),
		Logger:   p.logger,
	})

	if err := orch.RunOnce(ctx, nil); err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	return nil
}

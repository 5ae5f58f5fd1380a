package cli

import (
	"github.com/spf13/cobra"

	"github.com/vibbit-dev/extreload/internal/manifest"
	"github.com/vibbit-dev/extreload/internal/watch"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the extension sources, rebuild and reload on change",
		Long: `Watch monitors the configured files and directories for changes and,
once edits have been quiet for the debounce period, runs the build command
and reloads the extension in the connected browser.

A cycle runs once at startup. Changes made while a cycle runs are collected
into exactly one follow-up cycle. Build and reload failures are reported and
the watch keeps running; press Ctrl+C to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd)
		},
	}

	registerAllFlags(cmd)

	return cmd
}

func runWatch(cmd *cobra.Command) error {
	ctx := cmd.Context()

	p, err := loadProject(ctx)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	opts := watch.DefaultOptions()
	opts.Roots = watchRoots(p.cfg)
	opts.Base = p.root
	opts.Debounce = p.cfg.Debounce()
	opts.Builder = p.runner(cmd.OutOrStdout(), cmd.ErrOrStderr())
	opts.Reloader = newReloadClient(p.cfg, p.logger)
	opts.Target = p.target()
	opts.Manifest = manifest.NewTracker(p.manifestPath, p.manifest)
	opts.Endpoint = p.cfg.DevToolsURL
	opts.Version = p.manifest.Version
	opts.Logger = p.logger
	opts.Out = cmd.ErrOrStderr()
	opts.NoColor = p.cfg.NoColor

	if err := watch.Run(ctx, opts); err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	return nil
}

package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newReloadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Reload the extension without building",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReload(cmd)
		},
	}

	registerProjectFlags(cmd)
	registerBrowserFlags(cmd)

	return cmd
}

func runReload(cmd *cobra.Command) error {
	ctx := cmd.Context()

	p, err := loadProject(ctx)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	target := p.target()
	p.logger.Debug("reloading extension",
		slog.String("target", describeTarget(target)),
		slog.String("endpoint", p.cfg.DevToolsURL),
	)

	outcome, err := newReloadClient(p.cfg, p.logger).Reload(ctx, target)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Extension reloaded (%s, %s).\n", outcome.Name, outcome.ID)

	return err
}

package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vibbit-dev/extreload/internal/config"
	"github.com/vibbit-dev/extreload/internal/logging"
	"github.com/vibbit-dev/extreload/internal/output"
	"github.com/vibbit-dev/extreload/internal/reload"
)

type listOptions struct {
	format string
}

func newListCommand() *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the extensions installed in the connected browser",
		Long: `List opens the browser's extension management page and prints every
extension it shows, with its id and whether it can be reloaded (unpacked
extensions in Developer mode).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, opts)
		},
	}

	registerBrowserFlags(cmd)
	cmd.Flags().StringVarP(&opts.format, "output", "o", "table", "output format: table, json, yaml")

	return cmd
}

func listRenderers() *output.Registry {
	r := output.DefaultRegistry()
	r.Register("table", func(w io.Writer, v any) error {
		return renderExtensionTable(w, v.([]reload.Extension))
	})

	return r
}

func runList(cmd *cobra.Command, opts *listOptions) error {
	renderers := listRenderers()

	render, err := renderers.Renderer(opts.format)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	ctx := cmd.Context()
	cfg := config.FromContext(ctx)

	exts, err := newReloadClient(cfg, logging.FromContext(ctx)).List(ctx)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	if exts == nil {
		exts = []reload.Extension{}
	}

	return render(cmd.OutOrStdout(), exts)
}

func renderExtensionTable(w io.Writer, exts []reload.Extension) error {
	if len(exts) == 0 {
		_, err := fmt.Fprintln(w, "No extensions visible.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tID\tRELOADABLE")

	for _, e := range exts {
		id := e.ID
		if id == "" {
			id = "-"
		}

		_, _ = fmt.Fprintf(tw, "%s\t%s\t%t\n", e.Name, id, e.HasReloadControl)
	}

	return tw.Flush()
}

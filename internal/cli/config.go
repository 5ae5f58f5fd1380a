package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vibbit-dev/extreload/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Config prints the configuration that results from flags, VIBBIT_*
environment variables (including those loaded from the env file), the
config file and the built-in defaults, as YAML.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshaling config: %w", err)
			}

			w := cmd.OutOrStdout()

			if cfg.ConfigFile != "" {
				_, _ = fmt.Fprintf(w, "# config file: %s\n", cfg.ConfigFile)
			}

			_, err = w.Write(data)

			return err
		},
	}

	registerAllFlags(cmd)

	return cmd
}

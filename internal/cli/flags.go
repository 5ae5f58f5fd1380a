package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/vibbit-dev/extreload/internal/config"
)

// registerProjectFlags adds the project layout flags to a cobra command.
func registerProjectFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("project-root", ".", "project directory; builds run here and paths resolve against it")
	f.String("manifest", config.DefaultManifest, "extension manifest path")
}

// registerBuildFlags adds the build command flags to a cobra command.
func registerBuildFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("build-command", config.DefaultBuildCommand, "command that builds the extension")
	f.Duration("build-timeout", 0, "kill the build after this long (0 disables)")
}

// registerBrowserFlags adds the remote debugging flags to a cobra command.
func registerBrowserFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("devtools-url", config.DefaultDevToolsURL, "browser remote debugging endpoint")
	f.String("extension-id", "", "target extension id (default: match the manifest name)")
	f.Duration("reload-timeout", config.DefaultReloadTimeout, "timeout for one reload attempt")
	f.Duration("settle-delay", config.DefaultSettleDelay, "time the extensions page is given to render")
}

// registerWatchFlags adds the watch loop flags to a cobra command.
func registerWatchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("watch-paths", strings.Join(config.DefaultWatchPaths, ","), "comma-separated files and directories to watch")
	f.Int("reload-debounce-ms", config.DefaultDebounceMS, "quiet period in milliseconds before a rebuild")
}

// registerAllFlags registers every configuration flag on a cobra command.
func registerAllFlags(cmd *cobra.Command) {
	registerProjectFlags(cmd)
	registerBuildFlags(cmd)
	registerBrowserFlags(cmd)
	registerWatchFlags(cmd)
}

// Package config provides configuration management for extreload.
//
// Configuration is loaded from four sources with the following precedence
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (VIBBIT_ prefix), optionally seeded from a .env file
//  3. Config file (.extreload.yaml)
//  4. Built-in defaults
package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Supported log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Defaults for the watch loop.
const (
	DefaultDevToolsURL   = "http://localhost:9222"
	DefaultManifest      = "extension/manifest.json"
	DefaultBuildCommand  = "npm run build"
	DefaultDebounceMS    = 300
	DefaultReloadTimeout = 30 * time.Second
	DefaultSettleDelay   = 250 * time.Millisecond
)

// DefaultWatchPaths are watched when watch-paths is unset.
var DefaultWatchPaths = []string{"work.js", "extension"}

var extensionIDPattern = regexp.MustCompile(`^[a-p]{32}$`)

// Config represents the global configuration for extreload.
type Config struct {
	// LogLevel controls the verbosity of log output.
	// Valid values: debug, info, warn, error.
	LogLevel string `mapstructure:"log-level" json:"logLevel" yaml:"log-level"`

	// LogFormat controls the format of log output.
	// Valid values: text, json.
	LogFormat string `mapstructure:"log-format" json:"logFormat" yaml:"log-format"`

	// NoColor disables colored output.
	NoColor bool `mapstructure:"no-color" json:"noColor" yaml:"no-color"`

	// Quiet suppresses all log output below error level.
	Quiet bool `mapstructure:"quiet" json:"quiet" yaml:"quiet"`

	// ProjectRoot is the directory the build runs in and that watch paths
	// and the manifest path are resolved against.
	ProjectRoot string `mapstructure:"project-root" json:"projectRoot" yaml:"project-root"`

	// Manifest is the extension manifest path, relative to ProjectRoot.
	Manifest string `mapstructure:"manifest" json:"manifest" yaml:"manifest"`

	// DevToolsURL is the browser's remote debugging endpoint.
	DevToolsURL string `mapstructure:"devtools-url" json:"devtoolsUrl" yaml:"devtools-url"`

	// ExtensionID selects the target extension by identifier. When empty
	// the manifest name is used instead.
	ExtensionID string `mapstructure:"extension-id" json:"extensionId" yaml:"extension-id"`

	// WatchPaths is a comma-separated list of roots, relative to ProjectRoot.
	WatchPaths string `mapstructure:"watch-paths" json:"watchPaths" yaml:"watch-paths"`

	// DebounceMS is the quiet period in milliseconds.
	DebounceMS int `mapstructure:"reload-debounce-ms" json:"reloadDebounceMs" yaml:"reload-debounce-ms"`

	// BuildCommand is split on whitespace into a command and its arguments.
	BuildCommand string `mapstructure:"build-command" json:"buildCommand" yaml:"build-command"`

	// BuildTimeout bounds a single build. Zero disables the limit.
	BuildTimeout time.Duration `mapstructure:"build-timeout" json:"buildTimeout" yaml:"build-timeout"`

	// ReloadTimeout bounds a single remote reload attempt.
	ReloadTimeout time.Duration `mapstructure:"reload-timeout" json:"reloadTimeout" yaml:"reload-timeout"`

	// SettleDelay is how long the extensions page is given to render
	// after navigation.
	SettleDelay time.Duration `mapstructure:"settle-delay" json:"settleDelay" yaml:"settle-delay"`

	// ConfigFile is the resolved path to the config file used.
	// Set after Load(), never read from config itself.
	ConfigFile string `mapstructure:"-" json:"-" yaml:"-"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:      LogLevelInfo,
		LogFormat:     LogFormatText,
		ProjectRoot:   ".",
		Manifest:      DefaultManifest,
		DevToolsURL:   DefaultDevToolsURL,
		WatchPaths:    strings.Join(DefaultWatchPaths, ","),
		DebounceMS:    DefaultDebounceMS,
		BuildCommand:  DefaultBuildCommand,
		ReloadTimeout: DefaultReloadTimeout,
		SettleDelay:   DefaultSettleDelay,
	}
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		// valid
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", c.LogFormat)
	}

	if c.DebounceMS < 0 {
		return fmt.Errorf("invalid reload-debounce-ms %d: must not be negative", c.DebounceMS)
	}

	if c.BuildTimeout < 0 || c.ReloadTimeout < 0 {
		return fmt.Errorf("invalid timeout: must not be negative")
	}

	if len(c.BuildArgv()) == 0 {
		return fmt.Errorf("invalid build-command: must not be empty")
	}

	u, err := url.Parse(c.DevToolsURL)
	if err != nil {
		return fmt.Errorf("invalid devtools-url %q: %w", c.DevToolsURL, err)
	}

	switch u.Scheme {
	case "http", "https", "ws", "wss":
		// valid
	default:
		return fmt.Errorf("invalid devtools-url %q: scheme must be http, https, ws or wss", c.DevToolsURL)
	}

	if id := strings.TrimSpace(c.ExtensionID); id != "" && !extensionIDPattern.MatchString(id) {
		return fmt.Errorf("invalid extension-id %q: must be 32 characters in a-p", id)
	}

	return nil
}

// EffectiveLogLevel returns the log level to use. When Quiet is true the log
// level is overridden to "error" regardless of the configured LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Quiet {
		return LogLevelError
	}

	return c.LogLevel
}

// WatchRoots returns the configured watch paths, trimmed and with empty
// entries dropped. DefaultWatchPaths is returned when nothing remains.
func (c *Config) WatchRoots() []string {
	var roots []string

	for _, part := range strings.Split(c.WatchPaths, ",") {
		if p := strings.TrimSpace(part); p != "" {
			roots = append(roots, p)
		}
	}

	if len(roots) == 0 {
		return append([]string(nil), DefaultWatchPaths...)
	}

	return roots
}

// BuildArgv splits BuildCommand into the command and its arguments.
func (c *Config) BuildArgv() []string {
	return strings.Fields(c.BuildCommand)
}

// Debounce returns the quiet period as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// TargetID returns the explicit extension identifier, if any.
func (c *Config) TargetID() string {
	return strings.TrimSpace(c.ExtensionID)
}

// ResolvePath resolves p against ProjectRoot unless it is already absolute.
func (c *Config) ResolvePath(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	root, err := filepath.Abs(c.ProjectRoot)
	if err != nil {
		root = c.ProjectRoot
	}

	return filepath.Join(root, p)
}

// Load initialises configuration from flags, environment variables, and an
// optional config file. A fresh viper instance is used on every call so that
// Load is safe for concurrent tests.
func Load(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	configureEnv(v)

	if err := configureFile(v, configFile); err != nil {
		return nil, err
	}

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Store the resolved config file path so downstream code can locate it.
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
	v.SetDefault("no-color", false)
	v.SetDefault("quiet", false)
	v.SetDefault("project-root", d.ProjectRoot)
	v.SetDefault("manifest", d.Manifest)
	v.SetDefault("devtools-url", d.DevToolsURL)
	v.SetDefault("extension-id", "")
	v.SetDefault("watch-paths", d.WatchPaths)
	v.SetDefault("reload-debounce-ms", d.DebounceMS)
	v.SetDefault("build-command", d.BuildCommand)
	v.SetDefault("build-timeout", time.Duration(0))
	v.SetDefault("reload-timeout", d.ReloadTimeout)
	v.SetDefault("settle-delay", d.SettleDelay)
}

// configureEnv sets up environment variable support.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("VIBBIT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

// configureFile sets up the config file source.
func configureFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %q: %w", configFile, err)
		}

		return nil
	}

	// Auto-discovery mode.
	v.SetConfigName(".extreload")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "extreload"))
	}

	if err := v.ReadInConfig(); err != nil {
		// No config file found → perfectly fine in auto-discovery.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}

		// Found a file but it was malformed.
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// bindFlags walks from cmd up to the root and binds all PersistentFlags.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	// Bind the current command's own flags.
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	// Walk up to root and bind all persistent flags at each level.
	for c := cmd; c != nil; c = c.Parent() {
		if err := v.BindPFlags(c.PersistentFlags()); err != nil {
			return fmt.Errorf("binding persistent flags: %w", err)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKey struct{}

// NewContext returns a child context carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext extracts a Config from ctx, falling back to Default().
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}

	return Default()
}

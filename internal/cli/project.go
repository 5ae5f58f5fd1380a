package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vibbit-dev/extreload/internal/build"
	"github.com/vibbit-dev/extreload/internal/config"
	"github.com/vibbit-dev/extreload/internal/devtools"
	"github.com/vibbit-dev/extreload/internal/logging"
	"github.com/vibbit-dev/extreload/internal/manifest"
	"github.com/vibbit-dev/extreload/internal/reload"
)

// openBrowser creates the reload capability for an endpoint. Tests replace
// it with an in-memory browser.
var openBrowser = func(url string, opts devtools.Options) reload.Browser {
	return devtools.NewBrowser(url, opts)
}

// project holds the collaborators shared by the build and reload commands.
type project struct {
	cfg    *config.Config
	logger *slog.Logger

	root         string
	manifestPath string
	manifest     *manifest.Manifest
}

// loadProject reads the manifest of the configured project. A manifest
// that cannot be read is fatal: the reload target depends on its name.
func loadProject(ctx context.Context) (*project, error) {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	p := &project{
		cfg:          cfg,
		logger:       logger,
		root:         cfg.ResolvePath("."),
		manifestPath: cfg.ResolvePath(cfg.Manifest),
	}

	m, err := manifest.Load(p.manifestPath)
	if err != nil {
		return nil, err
	}

	p.manifest = m

	if m.Version != "" {
		if _, err := m.SemVer(); err != nil {
			logger.Warn("manifest version is not a semantic version",
				slog.String("version", m.Version), slog.String("error", err.Error()))
		}
	}

	return p, nil
}

// target is the extension to reload: the explicit id when configured,
// otherwise the manifest's display name.
func (p *project) target() reload.Target {
	return reload.Target{ID: p.cfg.TargetID(), Name: p.manifest.DisplayName()}
}

// runner returns the build runner for the configured command.
func (p *project) runner(stdout, stderr io.Writer) *build.Runner {
	r := build.NewRunner(p.cfg.BuildArgv(), p.root)
	r.Timeout = p.cfg.BuildTimeout
	r.Stdout = stdout
	r.Stderr = stderr
	r.Logger = p.logger

	return r
}

// newReloadClient returns a reload client for the configured endpoint.
func newReloadClient(cfg *config.Config, logger *slog.Logger) *reload.Client {
	browser := openBrowser(cfg.DevToolsURL, devtools.Options{
		SettleDelay: cfg.SettleDelay,
		Logger:      logger,
	})

	return reload.NewClient(browser, cfg.ReloadTimeout, logger)
}

// watchRoots resolves the configured watch paths against the project root.
func watchRoots(cfg *config.Config) []string {
	paths := cfg.WatchRoots()
	roots := make([]string, 0, len(paths))

	for _, p := range paths {
		roots = append(roots, cfg.ResolvePath(p))
	}

	return roots
}

func describeTarget(t reload.Target) string {
	if t.ID != "" {
		return fmt.Sprintf("id %s", t.ID)
	}

	return fmt.Sprintf("name %q", t.Name)
}

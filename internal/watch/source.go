package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ErrNoRoots is returned when none of the configured roots could be watched.
var ErrNoRoots = errors.New("no watch root could be watched")

type watchRoot struct {
	path string

	// file roots are watched through their parent directory and only
	// events for the file itself are reported.
	file bool
}

// Source watches a set of roots recursively and reports changes.
type Source struct {
	watcher *fsnotify.Watcher
	roots   []watchRoot
	logger  *slog.Logger
}

// NewSource starts watching roots. A root may be a directory, watched
// recursively with hidden subdirectories skipped, or a single file. Roots
// that cannot be watched are logged and skipped; ErrNoRoots is returned when
// none remain.
func NewSource(roots []string, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	s := &Source{watcher: watcher, logger: logger}

	var failures []string

	for _, r := range roots {
		if err := s.addRoot(r); err != nil {
			logger.Error("cannot watch root", slog.String("root", r), slog.String("error", err.Error()))
			failures = append(failures, fmt.Sprintf("%s: %v", r, err))

			continue
		}
	}

	if len(s.roots) == 0 {
		_ = watcher.Close()

		if len(failures) == 0 {
			return nil, ErrNoRoots
		}

		return nil, fmt.Errorf("%w (%s)", ErrNoRoots, strings.Join(failures, "; "))
	}

	return s, nil
}

func (s *Source) addRoot(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		if err := s.watcher.Add(filepath.Dir(abs)); err != nil {
			return err
		}

		s.roots = append(s.roots, watchRoot{path: abs, file: true})

		return nil
	}

	if err := s.addRecursive(abs); err != nil {
		return err
	}

	s.roots = append(s.roots, watchRoot{path: abs})

	return nil
}

// Roots returns the absolute paths being watched.
func (s *Source) Roots() []string {
	out := make([]string, 0, len(s.roots))
	for _, r := range s.roots {
		out = append(out, r.path)
	}

	return out
}

// Close stops all watches.
func (s *Source) Close() error {
	return s.watcher.Close()
}

// Run delivers events to emit until ctx is cancelled or the watcher is
// closed. Watch errors are logged and do not stop delivery.
func (s *Source) Run(ctx context.Context, emit func(ChangeEvent)) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}

			if !isRelevant(event) {
				continue
			}

			ev, ok := s.resolve(event)
			if !ok {
				continue
			}

			// If a new directory was created, watch it too.
			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if err := s.addRecursive(event.Name); err != nil {
						s.logger.Warn("cannot watch new directory",
							slog.String("path", event.Name), slog.String("error", err.Error()))
					}
				}
			}

			if (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) && s.isRoot(event.Name) {
				s.logger.Error("watch root is no longer accessible", slog.String("root", event.Name))
			}

			emit(ev)

		case watchErr, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}

			s.logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// resolve maps a raw event to the most specific root containing it.
func (s *Source) resolve(event fsnotify.Event) (ChangeEvent, bool) {
	var (
		best    watchRoot
		matched bool
	)

	for _, r := range s.roots {
		if !r.contains(event.Name) {
			continue
		}

		if !matched || len(r.path) > len(best.path) {
			best, matched = r, true
		}
	}

	if !matched {
		return ChangeEvent{}, false
	}

	ev := ChangeEvent{Kind: KindOf(event.Op)}

	if best.file {
		ev.Root = filepath.Dir(best.path)
		ev.RelativePath = filepath.Base(best.path)

		return ev, true
	}

	rel, err := filepath.Rel(best.path, event.Name)
	if err != nil {
		return ChangeEvent{}, false
	}

	ev.Root = best.path
	ev.RelativePath = rel

	return ev, true
}

func (r watchRoot) contains(name string) bool {
	if r.file {
		return name == r.path
	}

	return name == r.path || strings.HasPrefix(name, r.path+string(filepath.Separator))
}

func (s *Source) isRoot(name string) bool {
	for _, r := range s.roots {
		if r.path == name {
			return true
		}
	}

	return false
}

// addRecursive walks root and adds all directories to the watcher. Only a
// failure on root itself is returned; unreadable subdirectories are logged
// and skipped.
func (s *Source) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}

			s.logger.Warn("skipping unreadable directory", slog.String("path", path), slog.String("error", err.Error()))

			return filepath.SkipDir
		}

		if !d.IsDir() {
			return nil
		}

		// Skip hidden directories (e.g., .git).
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}

		if err := s.watcher.Add(path); err != nil {
			if path == root {
				return err
			}

			s.logger.Warn("cannot watch directory", slog.String("path", path), slog.String("error", err.Error()))
		}

		return nil
	})
}

// isRelevant filters out permission changes and editor scratch files.
func isRelevant(event fsnotify.Event) bool {
	if event.Op == 0 {
		return false
	}

	// Only care about write, create, remove, rename.
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Base(event.Name)

	// Ignore editor temporary files and hidden files.
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") || strings.HasPrefix(name, "#") {
		return false
	}

	return true
}

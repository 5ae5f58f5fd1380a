package watch

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Kind classifies a filesystem change.
type Kind string

// Change kinds.
const (
	KindCreate  Kind = "create"
	KindModify  Kind = "modify"
	KindDelete  Kind = "delete"
	KindRename  Kind = "rename"
	KindUnknown Kind = "unknown"
)

// ChangeEvent is a single notification from a Source.
type ChangeEvent struct {
	// Root is the watched directory the event was observed under.
	Root string

	Kind Kind

	// RelativePath is the changed path relative to Root.
	RelativePath string
}

// Path returns the absolute path of the changed entry.
func (e ChangeEvent) Path() string {
	return filepath.Join(e.Root, e.RelativePath)
}

// MaxReasonLength is the longest reason kept verbatim.
const MaxReasonLength = 140

const ellipsis = "..."

// KindOf maps an fsnotify operation to a Kind. When several bits are set
// the most significant change wins.
func KindOf(op fsnotify.Op) Kind {
	switch {
	case op.Has(fsnotify.Create):
		return KindCreate
	case op.Has(fsnotify.Remove):
		return KindDelete
	case op.Has(fsnotify.Rename):
		return KindRename
	case op.Has(fsnotify.Write):
		return KindModify
	default:
		return KindUnknown
	}
}

// Normalize renders ev as "<kind>:<path>" with the path relative to base,
// truncated to MaxReasonLength.
func Normalize(base string, ev ChangeEvent) string {
	full := ev.Path()

	rel, err := filepath.Rel(base, full)
	if err != nil {
		rel = full
	}

	return Truncate(string(ev.Kind) + ":" + filepath.ToSlash(rel))
}

// Truncate shortens reason to MaxReasonLength runes, replacing the tail
// with an ellipsis.
func Truncate(reason string) string {
	runes := []rune(reason)
	if len(runes) <= MaxReasonLength {
		return reason
	}

	return string(runes[:MaxReasonLength-len(ellipsis)]) + ellipsis
}

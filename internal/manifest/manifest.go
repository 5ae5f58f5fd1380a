// Package manifest reads the browser extension's manifest.json. It resolves
// the display name used to find the extension on the browser's extensions
// page and reports manifest changes between build cycles.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/pmezard/go-difflib/difflib"
)

// DefaultName is the display name used when the manifest has no name.
const DefaultName = "Vibbit"

// Manifest holds the manifest fields extreload cares about.
type Manifest struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	ManifestVersion int    `json:"manifest_version"`
	Description     string `json:"description,omitempty"`

	raw []byte
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest %q: %w", path, err)
	}

	return m, nil
}

// Parse decodes manifest JSON.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	m.raw = data

	return &m, nil
}

// DisplayName returns the manifest name, or DefaultName when it is empty.
func (m *Manifest) DisplayName() string {
	if m == nil || m.Name == "" {
		return DefaultName
	}

	return m.Name
}

// SemVer parses the manifest version. Browser extension versions allow up
// to four dot-separated integers, so a valid manifest version may still fail
// here; callers treat the error as informational.
func (m *Manifest) SemVer() (*semver.Version, error) {
	if m == nil || m.Version == "" {
		return nil, fmt.Errorf("manifest has no version")
	}

	v, err := semver.NewVersion(m.Version)
	if err != nil {
		return nil, fmt.Errorf("version %q is not semver: %w", m.Version, err)
	}

	return v, nil
}

// Change describes how the manifest differs from the previous cycle.
type Change struct {
	// Diff is a unified diff of the indented manifest JSON.
	Diff string

	OldVersion string
	NewVersion string

	// Regressed is true when both versions parse and the new one is lower.
	Regressed bool

	// NameChanged signals that lookups by display name may stop matching.
	NameChanged bool
}

// VersionChanged reports whether the version field differs.
func (c *Change) VersionChanged() bool {
	return c.OldVersion != c.NewVersion
}

// Tracker remembers the manifest seen by the previous cycle.
type Tracker struct {
	path string

	mu   sync.Mutex
	prev *Manifest
}

// NewTracker returns a Tracker for path seeded with initial, which may be nil.
func NewTracker(path string, initial *Manifest) *Tracker {
	return &Tracker{path: path, prev: initial}
}

// Check re-reads the manifest and returns the change since the last call,
// or nil when the content is unchanged (ignoring formatting).
func (t *Tracker) Check() (*Change, error) {
	curr, err := Load(t.path)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	prev := t.prev
	t.prev = curr
	t.mu.Unlock()

	if prev == nil {
		return nil, nil
	}

	return Compare(prev, curr)
}

// Compare returns the change between two manifests, or nil when they are
// equal after normalising whitespace.
func Compare(prev, curr *Manifest) (*Change, error) {
	oldDoc, err := normalize(prev.raw)
	if err != nil {
		return nil, err
	}

	newDoc, err := normalize(curr.raw)
	if err != nil {
		return nil, err
	}

	if oldDoc == newDoc {
		return nil, nil
	}

	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldDoc),
		B:        difflib.SplitLines(newDoc),
		FromFile: "manifest.json (previous)",
		ToFile:   "manifest.json (current)",
		Context:  2,
	})
	if err != nil {
		return nil, fmt.Errorf("computing manifest diff: %w", err)
	}

	change := &Change{
		Diff:        unified,
		OldVersion:  prev.Version,
		NewVersion:  curr.Version,
		NameChanged: prev.DisplayName() != curr.DisplayName(),
	}

	oldV, oldErr := prev.SemVer()
	newV, newErr := curr.SemVer()

	if oldErr == nil && newErr == nil {
		change.Regressed = newV.LessThan(oldV)
	}

	return change, nil
}

func normalize(raw []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(raw), "", "  "); err != nil {
		return "", fmt.Errorf("normalizing manifest: %w", err)
	}

	buf.WriteByte('\n')

	return buf.String(), nil
}

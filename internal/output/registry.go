package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	sigsyaml "sigs.k8s.io/yaml"
)

// Renderer writes v to w in one output format.
type Renderer func(w io.Writer, v any) error

// Registry maps format names to renderers.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
}

// NewRegistry creates an empty renderer registry.
func NewRegistry() *Registry {
	return &Registry{
		renderers: make(map[string]Renderer),
	}
}

// Register adds a renderer under the given format name.
// Existing entries for the same name are overwritten.
func (r *Registry) Register(name string, renderer Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.renderers[name] = renderer
}

// Renderer returns the renderer for the given format, or an error if not found.
func (r *Registry) Renderer(name string) (Renderer, error) {
	r.mu.RLock()
	f, ok := r.renderers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown output format %q (available: %s)", name, r.AvailableFormats())
	}

	return f, nil
}

// Render writes v to w using the named format.
func (r *Registry) Render(name string, w io.Writer, v any) error {
	render, err := r.Renderer(name)
	if err != nil {
		return err
	}

	return render(w, v)
}

// Formats returns the sorted list of registered format names.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.renderers))
	for name := range r.renderers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// AvailableFormats returns a comma-separated string of registered format names.
func (r *Registry) AvailableFormats() string {
	formats := r.Formats()
	if len(formats) == 0 {
		return "none"
	}

	return strings.Join(formats, ", ")
}

// DefaultRegistry returns a registry pre-populated with the json and yaml
// renderers. Both honour json struct tags.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("json", RenderJSON)
	r.Register("yaml", RenderYAML)

	return r
}

// RenderJSON writes v as indented JSON followed by a newline.
func RenderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// RenderYAML writes v as YAML. Field names follow the json tags.
func RenderYAML(w io.Writer, v any) error {
	data, err := sigsyaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling yaml: %w", err)
	}

	_, err = w.Write(data)

	return err
}

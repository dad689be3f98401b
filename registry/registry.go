package registry

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Role classifies a registry entry as untrusted input or dangerous call.
type Role string

const (
	RoleSource Role = "source"
	RoleSink   Role = "sink"
)

// Entry describes a known source or sink by its dotted Python name.
type Entry struct {
	Name    string `yaml:"name"`
	Role    Role   `yaml:"role"`
	Display string `yaml:"display,omitempty"`
	// Live marks sources carrying live external input, as opposed to
	// limited-reach values such as environment variables.
	Live bool `yaml:"live,omitempty"`
	// ReExposesInput marks sinks whose return value re-exposes the
	// deserialized input to the caller.
	ReExposesInput bool `yaml:"reExposesInput,omitempty"`
}

// Registry maps dotted names to source and sink entries. A registry is
// immutable once built and safe for concurrent readers without locking.
type Registry struct {
	entries map[string]*Entry
}

// LoadError reports a catalog that could not be read or parsed. A scan must
// not proceed on a partial catalog, so load failures are fatal.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load registry %v: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// New builds a registry from entries; later entries shadow earlier ones.
func New(entries ...*Entry) *Registry {
	r := &Registry{entries: make(map[string]*Entry, len(entries))}
	for _, entry := range entries {
		if entry.Display == "" {
			entry.Display = entry.Name
		}
		r.entries[entry.Name] = entry
	}
	return r
}

// Default returns the built-in source and sink catalog.
func Default() *Registry {
	return New(defaultEntries()...)
}

// Load merges a YAML catalog over the built-in defaults.
func Load(ctx context.Context, fs afs.Service, URL string) (*Registry, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, &LoadError{URL: URL, Err: err}
	}
	var catalog struct {
		Entries []*Entry `yaml:"entries"`
	}
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, &LoadError{URL: URL, Err: err}
	}
	if len(catalog.Entries) == 0 {
		return nil, &LoadError{URL: URL, Err: fmt.Errorf("catalog has no entries")}
	}
	for _, entry := range catalog.Entries {
		if entry.Name == "" {
			return nil, &LoadError{URL: URL, Err: fmt.Errorf("catalog entry with empty name")}
		}
		if entry.Role != RoleSource && entry.Role != RoleSink {
			return nil, &LoadError{URL: URL, Err: fmt.Errorf("entry %v has invalid role %q", entry.Name, entry.Role)}
		}
	}
	return New(append(defaultEntries(), catalog.Entries...)...), nil
}

// Lookup returns the entry registered under name, or nil.
func (r *Registry) Lookup(name string) *Entry {
	return r.entries[name]
}

// Source returns the source entry for name, or nil.
func (r *Registry) Source(name string) *Entry {
	if entry := r.entries[name]; entry != nil && entry.Role == RoleSource {
		return entry
	}
	return nil
}

// Sink returns the sink entry for name, or nil.
func (r *Registry) Sink(name string) *Entry {
	if entry := r.entries[name]; entry != nil && entry.Role == RoleSink {
		return entry
	}
	return nil
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	return len(r.entries)
}

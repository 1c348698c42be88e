package interp

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps interpreter names and language tags to descriptors.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Descriptor
	order  []string // registration order, used for deterministic tag lookups
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Descriptor),
	}
}

// Register adds a backend type. Names must be unique.
func (r *Registry) Register(d Descriptor) error {
	if err := d.validate(); err != nil {
		return fmt.Errorf("registering %q: %w", d.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrInterpreterExists, d.Name)
	}
	d.Languages = append([]string(nil), d.Languages...)
	r.byName[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byName[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrInterpreterNotFound, name)
	}
	return d, nil
}

// Candidates returns every descriptor claiming tag, in registration order.
func (r *Registry) Candidates(tag string) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Descriptor
	for _, name := range r.order {
		if d := r.byName[name]; d.Claims(tag) {
			out = append(out, d)
		}
	}
	return out
}

// Lookup picks the backend for a filetype tag.
func (r *Registry) Lookup(tag string) (Descriptor, error) {
	return r.Resolve(tag, nil)
}

// Resolve picks the backend for tag. A candidate named in preferred wins
// first; otherwise a lone candidate wins, then the lone default among several.
func (r *Registry) Resolve(tag string, preferred []string) (Descriptor, error) {
	candidates := r.Candidates(tag)
	if len(candidates) == 0 {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, tag)
	}

	for _, name := range preferred {
		for _, d := range candidates {
			if d.Name == name {
				return d, nil
			}
		}
	}

	if len(candidates) == 1 {
		return candidates[0], nil
	}

	var defaults []Descriptor
	for _, d := range candidates {
		if d.DefaultForFiletype {
			defaults = append(defaults, d)
		}
	}
	if len(defaults) == 1 {
		return defaults[0], nil
	}
	return Descriptor{}, fmt.Errorf("%w: %q", ErrAmbiguousLanguage, tag)
}

// List returns all descriptors sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.byName))
	for _, d := range r.byName {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of registered backends.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

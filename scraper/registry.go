package scraper

import "strings"

// Registry maps publisher display names to adapters, keeping registration order.
type Registry struct {
	order    []string
	adapters map[string]Adapter
}

// NewRegistry creates a Registry holding adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds a, replacing any adapter with the same publisher name.
func (r *Registry) Register(a Adapter) {
	name := a.Publisher()
	if _, exists := r.adapters[name]; !exists {
		r.order = append(r.order, name)
	}
	r.adapters[name] = a
}

// Names returns publisher names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Lookup finds an adapter by exact name, then case-insensitively.
func (r *Registry) Lookup(name string) (Adapter, bool) {
	name = strings.TrimSpace(name)
	if a, ok := r.adapters[name]; ok {
		return a, true
	}
	for _, known := range r.order {
		if strings.EqualFold(known, name) {
			return r.adapters[known], true
		}
	}
	return nil, false
}

// Select resolves requested names in request order. A publisher requested
// twice is selected once; names that match nothing are returned in unknown.
func (r *Registry) Select(names []string) (selected []Adapter, unknown []string) {
	seen := make(map[string]bool)
	for _, name := range names {
		a, ok := r.Lookup(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if seen[a.Publisher()] {
			continue
		}
		seen[a.Publisher()] = true
		selected = append(selected, a)
	}
	return selected, unknown
}

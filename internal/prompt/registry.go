package prompt

import (
	"sort"
	"sync"

	"brainc/internal/logging"
)

// Registry holds every declared definition keyed by id.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition. A second definition with the same id is
// rejected with a DuplicateError and the first one is kept. Only one brain
// may be registered.
func (r *Registry) Register(d *Definition) error {
	if d == nil {
		return definitionErrorf("(nil)", "nil definition")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := d.Meta.ID
	if existing, ok := r.defs[id]; ok {
		return &DuplicateError{ID: id, First: sourceOf(existing), Second: sourceOf(d)}
	}
	if d.Kind == Brain {
		for _, other := range r.defs {
			if other.Kind == Brain {
				return definitionErrorf(id, "a brain is already registered (%s from %s)", other.Meta.ID, sourceOf(other))
			}
		}
	}
	r.defs[id] = d
	return nil
}

// RegisterAll registers every definition and returns the errors of the ones
// that were rejected.
func (r *Registry) RegisterAll(defs ...*Definition) []error {
	var errs []error
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func sourceOf(d *Definition) string {
	if d.Source == "" {
		return "(unknown)"
	}
	return d.Source
}

// Get returns a definition by id.
func (r *Registry) Get(id string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[id]
	return d, ok
}

// All returns every definition sorted by id.
func (r *Registry) All() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Meta.ID < out[j].Meta.ID })
	return out
}

// ByKind returns the definitions of one kind sorted by id.
func (r *Registry) ByKind(kind Kind) []*Definition {
	var out []*Definition
	for _, d := range r.All() {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Edges returns every include edge as (from, to) pairs, sorted by source id
// and then in declaration order.
func (r *Registry) Edges() [][2]string {
	var edges [][2]string
	for _, d := range r.All() {
		for _, inc := range d.Includes {
			edges = append(edges, [2]string{d.Meta.ID, inc})
		}
	}
	return edges
}

// Construct runs every definition's construction pass once, sequentially in
// id order, and returns the results.
func (r *Registry) Construct() *Library {
	timer := logging.StartTimer(logging.CategoryBuilder, "Registry.Construct")
	defer timer.Stop()

	lib := &Library{entries: make(map[string]*Constructed)}
	failed := 0
	for _, d := range r.All() {
		fragments, err := d.Construct()
		if err != nil {
			failed++
			logging.Get(logging.CategoryBuilder).Warn("construction of %s failed: %v", d.Meta.ID, err)
		}
		lib.entries[d.Meta.ID] = &Constructed{Definition: d, Fragments: fragments, Err: err}
		lib.order = append(lib.order, d.Meta.ID)
	}
	logging.Get(logging.CategoryBuilder).Info("constructed %d definitions (%d failed)", len(lib.order), failed)
	return lib
}

// Constructed is the outcome of one definition's construction pass.
type Constructed struct {
	Definition *Definition
	Fragments  []Fragment
	Err        error
}

// Library is the read-only result of Registry.Construct. It is safe for
// concurrent use.
type Library struct {
	entries map[string]*Constructed
	order   []string
}

// Get returns the construction result for an id.
func (l *Library) Get(id string) (*Constructed, bool) {
	c, ok := l.entries[id]
	return c, ok
}

// IDs returns every constructed id in sorted order.
func (l *Library) IDs() []string {
	return append([]string(nil), l.order...)
}

// Roots returns the emitted (non-include) definitions in id order.
func (l *Library) Roots() []*Definition {
	var out []*Definition
	for _, id := range l.order {
		if d := l.entries[id].Definition; d.Kind.Emitted() {
			out = append(out, d)
		}
	}
	return out
}

// Failures returns the construction errors keyed by definition id.
func (l *Library) Failures() map[string]error {
	out := make(map[string]error)
	for id, c := range l.entries {
		if c.Err != nil {
			out[id] = c.Err
		}
	}
	return out
}

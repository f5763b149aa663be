package prompt

import (
	"sort"
	"strings"

	"brainc/internal/logging"
)

// ResolvedFragment is a fragment tagged with the definition that declared it.
type ResolvedFragment struct {
	Fragment Fragment
	Origin   string
}

// Resolution is the flattened content of one root definition.
type Resolution struct {
	Root *Definition

	// Order lists contributing definition ids, dependencies first, ending with the root.
	Order     []string
	Fragments []ResolvedFragment
}

// Includes returns the contributing ids other than the root.
func (r *Resolution) Includes() []string {
	if len(r.Order) == 0 {
		return nil
	}
	return append([]string(nil), r.Order[:len(r.Order)-1]...)
}

// DFS node colors.
const (
	white = 0 // unvisited
	gray  = 1 // on the open stack
	black = 2 // done
)

// IncludeResolver flattens include graphs over a constructed Library.
// It holds no mutable state and is safe for concurrent use.
type IncludeResolver struct {
	lib *Library
}

// NewIncludeResolver creates a resolver over lib.
func NewIncludeResolver(lib *Library) *IncludeResolver {
	return &IncludeResolver{lib: lib}
}

// Resolve walks the include graph of root depth-first. Each definition
// contributes its fragments once, after everything it includes, and siblings
// keep their declaration order.
func (r *IncludeResolver) Resolve(root string) (*Resolution, error) {
	timer := logging.StartTimer(logging.CategoryResolver, "IncludeResolver.Resolve")
	defer timer.Stop()

	rootEntry, ok := r.lib.Get(root)
	if !ok {
		return nil, &MissingIncludeError{From: "(root)", Missing: root}
	}

	res := &Resolution{Root: rootEntry.Definition}
	color := make(map[string]int)
	var stack []string

	var visit func(id, from string) error
	visit = func(id, from string) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return &CycleError{Path: cycleFrom(stack, id)}
		}

		entry, ok := r.lib.Get(id)
		if !ok {
			return &MissingIncludeError{From: from, Missing: id}
		}
		if entry.Err != nil {
			if id == root {
				return entry.Err
			}
			return &BrokenIncludeError{Root: root, Broken: id, Cause: entry.Err}
		}

		color[id] = gray
		stack = append(stack, id)

		for _, inc := range entry.Definition.Includes {
			if err := visit(inc, id); err != nil {
				return err
			}
		}

		for _, f := range entry.Fragments {
			res.Fragments = append(res.Fragments, ResolvedFragment{Fragment: f.Clone(), Origin: id})
		}
		res.Order = append(res.Order, id)

		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	if err := visit(root, ""); err != nil {
		logging.Get(logging.CategoryResolver).Warn("resolve %s: %v", root, err)
		return nil, err
	}

	logging.Get(logging.CategoryResolver).Debug("resolved %s: %d definitions, %d fragments",
		root, len(res.Order), len(res.Fragments))
	return res, nil
}

// cycleFrom returns the part of the open stack starting at id, closed with id.
func cycleFrom(stack []string, id string) []string {
	for i, s := range stack {
		if s == id {
			path := append([]string(nil), stack[i:]...)
			return append(path, id)
		}
	}
	return []string{id, id}
}

// ValidateGraph reports every missing include reference and at least one
// cycle per cyclic component, one per back edge found by the walk. It does
// not enumerate every elementary cycle. Definitions are visited in id order
// so the result is deterministic.
func ValidateGraph(reg *Registry) []error {
	timer := logging.StartTimer(logging.CategoryResolver, "ValidateGraph")
	defer timer.Stop()

	var errs []error
	color := make(map[string]int)
	seenCycles := make(map[string]bool)
	var stack []string

	var visit func(d *Definition)
	visit = func(d *Definition) {
		id := d.Meta.ID
		color[id] = gray
		stack = append(stack, id)

		for _, inc := range d.Includes {
			next, ok := reg.Get(inc)
			if !ok {
				errs = append(errs, &MissingIncludeError{From: id, Missing: inc})
				continue
			}
			switch color[inc] {
			case gray:
				path := cycleFrom(stack, inc)
				key := cycleKey(path)
				if !seenCycles[key] {
					seenCycles[key] = true
					errs = append(errs, &CycleError{Path: path})
				}
			case white:
				visit(next)
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, d := range reg.All() {
		if color[d.Meta.ID] == white {
			visit(d)
		}
	}

	if len(errs) > 0 {
		logging.Get(logging.CategoryResolver).Warn("graph validation found %d problems", len(errs))
	}
	return errs
}

// cycleKey identifies a cycle independent of its starting node.
func cycleKey(path []string) string {
	members := path[:len(path)-1]
	if len(members) == 0 {
		return ""
	}
	start := 0
	for i, m := range members {
		if m < members[start] {
			start = i
		}
	}
	rotated := append(append([]string(nil), members[start:]...), members[:start]...)
	return strings.Join(rotated, "\x00")
}

// Reaches reports which of the given ids are reachable from root, including
// root itself. Unknown includes are skipped.
func Reaches(reg *Registry, root string, ids []string) []string {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	seen := make(map[string]bool)
	var found []string
	var walk func(id string)
	walk = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		if want[id] {
			found = append(found, id)
		}
		if d, ok := reg.Get(id); ok {
			for _, inc := range d.Includes {
				walk(inc)
			}
		}
	}
	walk(root)
	sort.Strings(found)
	return found
}

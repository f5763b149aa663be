// Package graph answers reachability questions about the include graph by
// evaluating it as a Mangle program.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"brainc/internal/logging"
	"brainc/internal/prompt"
)

// schema declares the extensional predicates and derives transitive
// dependencies and cycle membership.
const schema = `
Decl definition(ID).
Decl includes(From, To).

depends(X, Y) :- includes(X, Y).
depends(X, Z) :- includes(X, Y), depends(Y, Z).

cyclic(X) :- depends(X, X).
`

// Analysis is the evaluated include graph of one registry snapshot.
// It is read-only after Build and safe for concurrent use.
type Analysis struct {
	ids          []string
	dependencies map[string][]string // id -> everything it transitively includes
	dependents   map[string][]string // id -> everything that transitively includes it
	cyclic       []string
}

// Build evaluates the include graph of reg.
func Build(reg *prompt.Registry) (*Analysis, error) {
	timer := logging.StartTimer(logging.CategoryGraph, "graph.Build")
	defer timer.Stop()

	program := Program(reg)

	unit, err := parse.Unit(strings.NewReader(program))
	if err != nil {
		return nil, fmt.Errorf("graph: parse program: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: analyze program: %w", err)
	}
	store := factstore.NewSimpleInMemoryStore()
	stats, err := engine.EvalProgramWithStats(programInfo, store)
	if err != nil {
		return nil, fmt.Errorf("graph: evaluate program: %w", err)
	}
	logging.Get(logging.CategoryGraph).Debug("evaluated include graph: %d clauses, %d strata",
		len(unit.Clauses), len(stats.Strata))

	a := &Analysis{
		dependencies: make(map[string][]string),
		dependents:   make(map[string][]string),
	}
	for _, d := range reg.All() {
		a.ids = append(a.ids, d.Meta.ID)
	}

	err = store.GetFacts(ast.NewQuery(ast.PredicateSym{Symbol: "depends", Arity: 2}), func(atom ast.Atom) error {
		from, to := constantString(atom.Args[0]), constantString(atom.Args[1])
		if from == to {
			return nil
		}
		a.dependencies[from] = append(a.dependencies[from], to)
		a.dependents[to] = append(a.dependents[to], from)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("graph: query depends: %w", err)
	}

	err = store.GetFacts(ast.NewQuery(ast.PredicateSym{Symbol: "cyclic", Arity: 1}), func(atom ast.Atom) error {
		a.cyclic = append(a.cyclic, constantString(atom.Args[0]))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("graph: query cyclic: %w", err)
	}

	for _, m := range []map[string][]string{a.dependencies, a.dependents} {
		for k := range m {
			sort.Strings(m[k])
		}
	}
	sort.Strings(a.cyclic)

	logging.Get(logging.CategoryGraph).Info("include graph: %d definitions, %d on cycles", len(a.ids), len(a.cyclic))
	return a, nil
}

// Program renders the registry as Mangle source: the schema followed by one
// fact per definition and per include edge.
func Program(reg *prompt.Registry) string {
	var b strings.Builder
	b.WriteString(schema)
	b.WriteString("\n")
	for _, d := range reg.All() {
		fmt.Fprintf(&b, "definition(%s).\n", quote(d.Meta.ID))
	}
	for _, e := range reg.Edges() {
		fmt.Fprintf(&b, "includes(%s, %s).\n", quote(e[0]), quote(e[1]))
	}
	return b.String()
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func constantString(term ast.BaseTerm) string {
	if c, ok := term.(ast.Constant); ok {
		return c.Symbol
	}
	return fmt.Sprintf("%v", term)
}

// Dependencies returns every id that id transitively includes, sorted.
func (a *Analysis) Dependencies(id string) []string {
	return append([]string(nil), a.dependencies[id]...)
}

// Dependents returns every id that transitively includes id, sorted.
func (a *Analysis) Dependents(id string) []string {
	return append([]string(nil), a.dependents[id]...)
}

// Cyclic returns every id that lies on an include cycle, sorted.
func (a *Analysis) Cyclic() []string {
	return append([]string(nil), a.cyclic...)
}

// Affected returns the changed ids plus everything that depends on them,
// sorted and deduplicated.
func (a *Analysis) Affected(changed []string) []string {
	set := make(map[string]bool)
	for _, id := range changed {
		set[id] = true
		for _, dep := range a.dependents[id] {
			set[dep] = true
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IDs returns every definition id known to the analysis, sorted.
func (a *Analysis) IDs() []string {
	return append([]string(nil), a.ids...)
}

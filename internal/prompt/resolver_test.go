package prompt

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// def declares an include-kind definition with one guideline named after it.
func def(id string, includes ...string) *Definition {
	return &Definition{
		Kind:     Include,
		Meta:     Meta{ID: id},
		Includes: includes,
		Build: func(b *Builder) {
			b.Add(Guideline(id + "-guide").Text("from " + id))
		},
	}
}

func newLibrary(t *testing.T, defs ...*Definition) (*Registry, *Library) {
	t.Helper()
	reg := NewRegistry()
	require.Empty(t, reg.RegisterAll(defs...))
	return reg, reg.Construct()
}

func origins(res *Resolution) []string {
	var out []string
	for _, rf := range res.Fragments {
		out = append(out, rf.Origin)
	}
	return out
}

func TestIncludeResolver_SharedIncludeAppearsOnce(t *testing.T) {
	// alpha -> shared; beta -> shared, alpha
	_, lib := newLibrary(t,
		def("shared"),
		def("alpha", "shared"),
		def("beta", "shared", "alpha"),
	)

	res, err := NewIncludeResolver(lib).Resolve("beta")
	require.NoError(t, err)

	assert.Equal(t, []string{"shared", "alpha", "beta"}, res.Order)
	assert.Equal(t, []string{"shared", "alpha", "beta"}, origins(res))
	assert.Equal(t, []string{"shared", "alpha"}, res.Includes())
}

func TestIncludeResolver_DiamondKeepsDeclarationOrder(t *testing.T) {
	_, lib := newLibrary(t,
		def("base"),
		def("left", "base"),
		def("right", "base"),
		def("top", "right", "left"),
	)

	res, err := NewIncludeResolver(lib).Resolve("top")
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "right", "left", "top"}, res.Order)
}

func TestIncludeResolver_Deterministic(t *testing.T) {
	_, lib := newLibrary(t,
		def("a"), def("b", "a"), def("c", "a", "b"), def("d", "c", "b", "a"),
	)
	r := NewIncludeResolver(lib)

	first, err := r.Resolve("d")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := r.Resolve("d")
		require.NoError(t, err)
		if diff := cmp.Diff(first.Fragments, again.Fragments); diff != "" {
			t.Fatalf("resolution changed on run %d (-first +again):\n%s", i, diff)
		}
	}
}

func TestIncludeResolver_Cycle(t *testing.T) {
	_, lib := newLibrary(t,
		def("root", "x"),
		def("x", "y"),
		def("y", "z"),
		def("z", "x"),
	)

	_, err := NewIncludeResolver(lib).Resolve("root")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycle))

	var ce *CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"x", "y", "z", "x"}, ce.Path)
	assert.ElementsMatch(t, []string{"x", "y", "z"}, ce.Members())
	assert.Equal(t, "include cycle: x -> y -> z -> x", ce.Error())
}

func TestIncludeResolver_SelfInclude(t *testing.T) {
	_, lib := newLibrary(t, def("loop", "loop"))

	_, err := NewIncludeResolver(lib).Resolve("loop")
	var ce *CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"loop", "loop"}, ce.Path)
}

func TestIncludeResolver_MissingInclude(t *testing.T) {
	_, lib := newLibrary(t, def("root", "ghost"))

	_, err := NewIncludeResolver(lib).Resolve("root")
	var me *MissingIncludeError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "root", me.From)
	assert.Equal(t, "ghost", me.Missing)
	assert.True(t, IsStructural(err))
}

func TestIncludeResolver_BrokenInclude(t *testing.T) {
	broken := &Definition{
		Kind:  Include,
		Meta:  Meta{ID: "broken"},
		Build: func(b *Builder) { b.Add(Rule("r").Critical()) },
	}
	_, lib := newLibrary(t, broken, def("uses-broken", "broken"), def("independent"))
	r := NewIncludeResolver(lib)

	_, err := r.Resolve("uses-broken")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBrokenInclude))
	assert.True(t, errors.Is(err, ErrInvalidFragment), "cause must stay reachable")

	_, err = r.Resolve("broken")
	assert.False(t, errors.Is(err, ErrBrokenInclude), "a root reports its own failure directly")
	assert.True(t, errors.Is(err, ErrInvalidFragment))

	_, err = r.Resolve("independent")
	assert.NoError(t, err)
}

func TestValidateGraph(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterAll(
		def("ok"),
		def("a", "b"),
		def("b", "a"),
		def("c", "missing-one", "ok"),
		def("d", "d"),
		def("e", "missing-two"),
	)

	errs := ValidateGraph(reg)

	var cycles [][]string
	var missing []string
	for _, err := range errs {
		var ce *CycleError
		var me *MissingIncludeError
		switch {
		case errors.As(err, &ce):
			cycles = append(cycles, ce.Path)
		case errors.As(err, &me):
			missing = append(missing, me.From+"->"+me.Missing)
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}

	assert.Equal(t, [][]string{{"a", "b", "a"}, {"d", "d"}}, cycles)
	assert.Equal(t, []string{"c->missing-one", "e->missing-two"}, missing)
}

func TestValidateGraph_Clean(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterAll(def("a"), def("b", "a"))
	assert.Empty(t, ValidateGraph(reg))
}

func TestReaches(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterAll(def("a"), def("b", "a"), def("c", "b", "ghost"), def("d"))

	assert.Equal(t, []string{"a", "c"}, Reaches(reg, "c", []string{"a", "c", "d", "ghost-free"}))
	assert.Empty(t, Reaches(reg, "d", []string{"a"}))
}

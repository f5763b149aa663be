package prompt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Definition{Kind: Include, Meta: Meta{ID: "b"}}))
	require.NoError(t, reg.Register(&Definition{Kind: Agent, Meta: Meta{ID: "a", Description: "x"}}))

	d, ok := reg.Get("a")
	require.True(t, ok)
	assert.Equal(t, Agent, d.Kind)

	_, ok = reg.Get("missing")
	assert.False(t, ok)

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Meta.ID)
	assert.Equal(t, 2, reg.Len())
	assert.Len(t, reg.ByKind(Include), 1)
}

func TestRegistry_DuplicateID(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Definition{Kind: Include, Meta: Meta{ID: "shared"}, Source: "catalog"}))

	err := reg.Register(&Definition{Kind: Include, Meta: Meta{ID: "shared"}, Source: "definitions/shared.yaml"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateID))

	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "catalog", dup.First)
	assert.Equal(t, "definitions/shared.yaml", dup.Second)

	d, _ := reg.Get("shared")
	assert.Equal(t, "catalog", d.Source, "first registration wins")
}

func TestRegistry_SingleBrain(t *testing.T) {
	reg := NewRegistry()
	errs := reg.RegisterAll(
		&Definition{Kind: Brain, Meta: Meta{ID: "brain"}},
		&Definition{Kind: Brain, Meta: Meta{ID: "other-brain"}},
	)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "a brain is already registered")
}

func TestRegistry_Edges(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterAll(
		&Definition{Kind: Include, Meta: Meta{ID: "b"}, Includes: []string{"z", "y"}},
		&Definition{Kind: Include, Meta: Meta{ID: "a"}, Includes: []string{"b"}},
	)
	assert.Equal(t, [][2]string{{"a", "b"}, {"b", "z"}, {"b", "y"}}, reg.Edges())
}

func TestRegistry_ConstructRecordsFailures(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterAll(
		&Definition{Kind: Include, Meta: Meta{ID: "good"}, Build: func(b *Builder) { b.Add(Guideline("g").Text("x")) }},
		&Definition{Kind: Include, Meta: Meta{ID: "bad"}, Build: func(b *Builder) { b.Add(Rule("r").Text("x")) }},
		&Definition{Kind: Agent, Meta: Meta{ID: "agent", Description: "d"}},
	)

	lib := reg.Construct()
	assert.Equal(t, []string{"agent", "bad", "good"}, lib.IDs())

	failures := lib.Failures()
	require.Len(t, failures, 1)
	assert.Contains(t, failures, "bad")

	good, ok := lib.Get("good")
	require.True(t, ok)
	assert.Len(t, good.Fragments, 1)

	roots := lib.Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, "agent", roots[0].Meta.ID)
}

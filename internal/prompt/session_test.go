package prompt

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(vars map[string]string) *Session {
	return NewSession(SessionOptions{
		ID:                "session-1",
		Target:            "claude",
		Now:               time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		ProjectDirectory:  "/work/project",
		BrainDirectory:    "/work/project/.claude",
		AgentsDirectory:   "/work/project/.claude/agents",
		CommandsDirectory: "/work/project/.claude/commands",
		SkillsDirectory:   "/work/project/.claude/skills",
		Variables:         vars,
	})
}

func TestNewSession_StandardVariables(t *testing.T) {
	s := testSession(nil)

	expect := map[string]string{
		VarProjectDirectory:  "/work/project",
		VarBrainDirectory:    "/work/project/.claude",
		VarAgentsDirectory:   "/work/project/.claude/agents",
		VarCommandsDirectory: "/work/project/.claude/commands",
		VarSkillsDirectory:   "/work/project/.claude/skills",
		VarTarget:            "claude",
		VarDate:              "2026-03-14",
		VarYear:              "2026",
		VarTimestamp:         "2026-03-14T09:26:53Z",
		VarSessionID:         "session-1",
	}
	for name, want := range expect {
		got, ok := s.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	assert.Equal(t, "session-1", s.ID())
	assert.Equal(t, "claude", s.Target())
}

func TestNewSession_GeneratesID(t *testing.T) {
	a := NewSession(SessionOptions{Target: "codex"})
	b := NewSession(SessionOptions{Target: "codex"})
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestNewSession_UserVariablesCannotShadowStandard(t *testing.T) {
	s := testSession(map[string]string{"TEAM": "platform", VarTarget: "cursor"})

	team, _ := s.Lookup("TEAM")
	assert.Equal(t, "platform", team)
	target, _ := s.Lookup(VarTarget)
	assert.Equal(t, "claude", target)
}

func TestSession_ScopeDoesNotMutateParent(t *testing.T) {
	parent := testSession(map[string]string{"TEAM": "platform"})
	child := parent.Scope(map[string]string{"TEAM": "infra", "EXTRA": "1"})

	v, _ := parent.Lookup("TEAM")
	assert.Equal(t, "platform", v)
	_, ok := parent.Lookup("EXTRA")
	assert.False(t, ok)

	v, _ = child.Lookup("TEAM")
	assert.Equal(t, "infra", v)
	assert.Equal(t, parent.ID(), child.ID())
}

func TestSession_ForDefinition(t *testing.T) {
	s := testSession(nil).ForDefinition(&Definition{Kind: Agent, Meta: Meta{ID: "code-reviewer"}}, ".claude/agents/code-reviewer.md")

	id, _ := s.Lookup(VarDefinitionID)
	kind, _ := s.Lookup(VarDefinitionKind)
	path, _ := s.Lookup(VarDefinitionPath)
	assert.Equal(t, "code-reviewer", id)
	assert.Equal(t, "agent", kind)
	assert.Equal(t, ".claude/agents/code-reviewer.md", path)
}

func TestSession_NamesSortedAndVarsCopied(t *testing.T) {
	s := testSession(map[string]string{"A_VAR": "x"})
	names := s.Names()
	assert.IsIncreasing(t, names)

	vars := s.Vars()
	vars["A_VAR"] = "changed"
	v, _ := s.Lookup("A_VAR")
	assert.Equal(t, "x", v)
}

func TestSession_ConcurrentScopes(t *testing.T) {
	s := testSession(nil)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			child := s.Scope(map[string]string{"N": "1"})
			_, _ = child.Lookup(VarTarget)
			_, _ = s.Lookup(VarTarget)
		}()
	}
	wg.Wait()
	_, ok := s.Lookup("N")
	assert.False(t, ok)
}

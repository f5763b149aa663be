package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainc/internal/config"
	"brainc/internal/ledger"
	"brainc/internal/prompt"
	"brainc/internal/target"
)

var testNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func agent(id string, includes ...string) *prompt.Definition {
	return &prompt.Definition{
		Kind:     prompt.Agent,
		Meta:     prompt.Meta{ID: id, Description: "Agent " + id},
		Includes: includes,
		Build: func(b *prompt.Builder) {
			b.Add(prompt.Rule(id + "-rule").High().Text("Rule of " + id))
		},
	}
}

func include(id string, includes ...string) *prompt.Definition {
	return &prompt.Definition{
		Kind:     prompt.Include,
		Meta:     prompt.Meta{ID: id},
		Includes: includes,
		Build: func(b *prompt.Builder) {
			b.Add(prompt.Guideline(id).Text("Shared " + id))
		},
	}
}

func workspace(t *testing.T, defs ...*prompt.Definition) *Workspace {
	t.Helper()
	reg := prompt.NewRegistry()
	require.Empty(t, reg.RegisterAll(defs...))
	return &Workspace{Registry: reg}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 3
	cfg.ProjectDirectory = "/work/project"
	cfg.SessionID = "session-1"
	cfg.Now = testNow
	return cfg
}

func newCompiler(t *testing.T, ws *Workspace, cfg Config, opts ...Option) (*Compiler, *MemoryWriter) {
	t.Helper()
	w := NewMemoryWriter()
	c, err := New(ws, append([]Option{WithConfig(cfg), WithWriter(w)}, opts...)...)
	require.NoError(t, err)
	return c, w
}

func TestCompile_PartialFailureIsIsolated(t *testing.T) {
	var defs []*prompt.Definition
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("agent-%02d", i)
		if i == 4 {
			defs = append(defs, agent(id, "missing-one"))
			continue
		}
		defs = append(defs, agent(id))
	}
	c, w := newCompiler(t, workspace(t, defs...), testConfig())

	report, err := c.Compile(context.Background(), Request{Targets: []string{target.Claude}})
	require.NoError(t, err)

	assert.Len(t, report.Artifacts, 9)
	require.Len(t, report.Failures, 1)
	f := report.Failures[0]
	assert.Equal(t, "agent-04", f.DefinitionID)
	assert.Equal(t, FailureStructural, f.Kind)
	assert.Empty(t, f.Target)
	assert.ErrorIs(t, f, prompt.ErrMissingInclude)
	assert.Equal(t, 1, report.ExitCode())

	_, wrote := w.Get(".claude/agents/agent-04.md")
	assert.False(t, wrote)
	_, wrote = w.Get(".claude/agents/agent-05.md")
	assert.True(t, wrote)
}

func TestCompile_SameBodyAcrossTargets(t *testing.T) {
	cmd := &prompt.Definition{
		Kind: prompt.Command,
		Meta: prompt.Meta{ID: "task-plan", Description: "Plan a task"},
		Build: func(b *prompt.Builder) {
			b.Add(prompt.Rule("plan-first").Critical().Text("Plan before acting.").Why("Plans catch mistakes early."))
		},
	}
	c, w := newCompiler(t, workspace(t, cmd), testConfig())

	report, err := c.Compile(context.Background(), Request{})
	require.NoError(t, err)
	require.Empty(t, report.Failures)
	assert.Equal(t, []string{"claude", "codex", "gemini", "qwen"}, report.Targets)

	assert.Equal(t, []string{
		".claude/commands/task-plan.md",
		".codex/commands/task-plan.md",
		".gemini/commands/task-plan.toml",
		".qwen/commands/task-plan.toml",
	}, w.Paths())

	var bodies []string
	for _, p := range w.Paths() {
		content, _ := w.Get(p)
		bodies = append(bodies, string(target.Body(content)))
	}
	for _, b := range bodies[1:] {
		assert.Empty(t, cmp.Diff(bodies[0], b))
	}
	assert.Contains(t, bodies[0], "### plan-first (CRITICAL)")

	claude, ok := report.Artifact("task-plan", target.Claude)
	require.True(t, ok)
	assert.Equal(t, prompt.HashContent(string(claude.Content)), claude.Hash)
	assert.Equal(t, "session-1", claude.Manifest.SessionID)
	assert.Equal(t, 0, report.ExitCode())
}

func TestCompile_SessionVariables(t *testing.T) {
	a := &prompt.Definition{
		Kind: prompt.Agent,
		Meta: prompt.Meta{ID: "reviewer", Description: "Reviews {{ TEAM }} code"},
		Build: func(b *prompt.Builder) {
			b.Add(prompt.Guideline("paths").Text(
				"Agents live in {{ AGENTS_DIRECTORY }}. This is {{DEFINITION_ID}} at {{ DEFINITION_PATH }} for {{ TARGET }} in session {{ SESSION_ID }} ({{ YEAR }})."))
		},
	}
	cfg := testConfig()
	cfg.Variables = map[string]string{"TEAM": "platform"}
	c, w := newCompiler(t, workspace(t, a), cfg)

	report, err := c.Compile(context.Background(), Request{Targets: []string{target.Qwen}})
	require.NoError(t, err)
	require.Empty(t, report.Failures)
	assert.Empty(t, report.Warnings)

	content, ok := w.Get(".qwen/agents/reviewer.md")
	require.True(t, ok)
	assert.Contains(t, string(content), "Agents live in .qwen/agents. This is reviewer at .qwen/agents/reviewer.md for qwen in session session-1 (2026).")
	assert.Contains(t, string(content), "description: Reviews platform code")
}

func TestCompile_UnresolvedVariables(t *testing.T) {
	a := &prompt.Definition{
		Kind: prompt.Agent,
		Meta: prompt.Meta{ID: "reviewer", Description: "Reviews code"},
		Build: func(b *prompt.Builder) {
			b.Add(prompt.Guideline("owner").Text("Escalate to {{ TEAM_LEAD }}, then {{ TEAM_LEAD }}."))
		},
	}

	t.Run("lenient keeps literal and warns once", func(t *testing.T) {
		c, w := newCompiler(t, workspace(t, a), testConfig())
		report, err := c.Compile(context.Background(), Request{Targets: []string{target.Claude}})
		require.NoError(t, err)
		require.Empty(t, report.Failures)

		content, _ := w.Get(".claude/agents/reviewer.md")
		assert.Contains(t, string(content), "Escalate to {{ TEAM_LEAD }}, then {{ TEAM_LEAD }}.")
		require.Len(t, report.Warnings, 1)
		assert.Contains(t, report.Warnings[0].Message, "TEAM_LEAD")
		assert.Equal(t, []string{"TEAM_LEAD"}, report.Artifacts[0].Manifest.Unresolved)
	})

	t.Run("strict fails the definition", func(t *testing.T) {
		cfg := testConfig()
		cfg.StrictVariables = true
		c, w := newCompiler(t, workspace(t, a), cfg)
		report, err := c.Compile(context.Background(), Request{Targets: []string{target.Claude}})
		require.NoError(t, err)

		require.Len(t, report.Failures, 1)
		assert.Equal(t, FailureSubstitution, report.Failures[0].Kind)
		assert.Equal(t, target.Claude, report.Failures[0].Target)
		var unresolved *prompt.UnresolvedVariableError
		assert.True(t, errors.As(report.Failures[0].Err, &unresolved))
		assert.Empty(t, w.Paths())
		assert.Equal(t, 2, report.ExitCode())
	})
}

type failingWriter struct {
	*MemoryWriter
	fail string
}

func (w failingWriter) Write(ctx context.Context, path string, content []byte) error {
	if strings.Contains(path, w.fail) {
		return errors.New("disk full")
	}
	return w.MemoryWriter.Write(ctx, path, content)
}

func TestCompile_WriteFailureIsPerTarget(t *testing.T) {
	mem := NewMemoryWriter()
	c, err := New(workspace(t, agent("alpha"), agent("beta")),
		WithConfig(testConfig()), WithWriter(failingWriter{MemoryWriter: mem, fail: ".codex/agents/alpha"}))
	require.NoError(t, err)

	report, err := c.Compile(context.Background(), Request{Targets: []string{target.Claude, target.Codex}})
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	f := report.Failures[0]
	assert.Equal(t, "alpha", f.DefinitionID)
	assert.Equal(t, target.Codex, f.Target)
	assert.Equal(t, FailureIO, f.Kind)
	assert.Len(t, report.Artifacts, 3)
	assert.Equal(t, 1, report.ExitCode())
}

func TestCompile_CycleAndBrokenInclude(t *testing.T) {
	broken := &prompt.Definition{
		Kind: prompt.Include,
		Meta: prompt.Meta{ID: "broken"},
		Build: func(b *prompt.Builder) {
			b.Add(prompt.Rule("no-severity").Text("Missing severity"))
		},
	}
	ws := workspace(t,
		include("loop-a", "loop-b"),
		include("loop-b", "loop-a"),
		broken,
		include("fine"),
		agent("cyclic-agent", "loop-a"),
		agent("broken-agent", "broken"),
		agent("healthy-agent", "fine"),
	)
	c, w := newCompiler(t, ws, testConfig())

	report, err := c.Compile(context.Background(), Request{Targets: []string{target.Claude}})
	require.NoError(t, err)

	byID := make(map[string]Failure)
	for _, f := range report.Failures {
		byID[f.DefinitionID] = f
	}
	require.Contains(t, byID, "cyclic-agent")
	assert.ErrorIs(t, byID["cyclic-agent"], prompt.ErrCycle)
	assert.Equal(t, FailureStructural, byID["cyclic-agent"].Kind)

	require.Contains(t, byID, "broken-agent")
	assert.ErrorIs(t, byID["broken-agent"], prompt.ErrBrokenInclude)
	assert.Equal(t, FailureStructural, byID["broken-agent"].Kind)

	require.Contains(t, byID, "broken")
	assert.Equal(t, FailureValidation, byID["broken"].Kind)

	assert.Equal(t, []string{".claude/agents/healthy-agent.md"}, w.Paths())
	assert.Equal(t, 1, report.ExitCode())
}

func TestCompile_Only(t *testing.T) {
	c, w := newCompiler(t, workspace(t, agent("alpha"), agent("beta"), include("shared")), testConfig())

	report, err := c.Compile(context.Background(), Request{
		Targets: []string{target.Claude},
		Only:    []string{"beta", "ghost", "shared", "beta"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{".claude/agents/beta.md"}, w.Paths())
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "ghost", report.Failures[0].DefinitionID)
	assert.Equal(t, FailureStructural, report.Failures[0].Kind)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "shared", report.Warnings[0].DefinitionID)
}

func TestCompile_OnlyUnknownFailsEverything(t *testing.T) {
	c, _ := newCompiler(t, workspace(t, agent("alpha")), testConfig())
	report, err := c.Compile(context.Background(), Request{Only: []string{"nope"}})
	require.NoError(t, err)
	assert.Equal(t, 2, report.ExitCode())
}

func TestCompile_RegistrationProblems(t *testing.T) {
	ws := workspace(t, agent("alpha"))
	ws.Problems = []error{&prompt.DuplicateError{ID: "alpha", First: "catalog", Second: "definitions/alpha.yaml"}}
	c, w := newCompiler(t, ws, testConfig())

	report, err := c.Compile(context.Background(), Request{Targets: []string{target.Claude}})
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "alpha", report.Failures[0].DefinitionID)
	assert.Equal(t, FailureStructural, report.Failures[0].Kind)
	assert.ErrorIs(t, report.Failures[0], prompt.ErrDuplicateID)

	assert.Empty(t, report.Artifacts, "a duplicated id is not emitted")
	assert.Empty(t, w.Paths())
}

func TestCompile_DuplicateIDBlocksDependents(t *testing.T) {
	first := include("shared")
	first.Source = "definitions/a.yaml"
	second := &prompt.Definition{
		Kind:   prompt.Include,
		Meta:   prompt.Meta{ID: "shared"},
		Source: "definitions/b.yaml",
		Build: func(b *prompt.Builder) {
			b.Add(prompt.Guideline("second").Text("SECOND"))
		},
	}

	reg := prompt.NewRegistry()
	problems := reg.RegisterAll(first, second, agent("user", "wrapper"), include("wrapper", "shared"), agent("bystander"))
	require.Len(t, problems, 1)
	ws := &Workspace{Registry: reg, Problems: problems}
	c, w := newCompiler(t, ws, testConfig())

	report, err := c.Compile(context.Background(), Request{Targets: []string{target.Claude, target.Codex}})
	require.NoError(t, err)

	failed := make(map[string]Failure)
	for _, f := range report.Failures {
		failed[f.DefinitionID] = f
	}
	require.Len(t, failed, 2)
	assert.Equal(t, FailureStructural, failed["shared"].Kind)
	assert.Equal(t, FailureStructural, failed["user"].Kind)
	assert.ErrorIs(t, failed["user"], prompt.ErrDuplicateID)
	assert.Contains(t, failed["user"].Error(), "definitions/b.yaml")

	_, ok := report.Artifact("user", target.Claude)
	assert.False(t, ok, "dependents of a duplicated id are not emitted")
	_, ok = w.Get(".claude/agents/user.md")
	assert.False(t, ok)
	_, ok = report.Artifact("bystander", target.Codex)
	assert.True(t, ok)
	assert.Equal(t, 1, report.ExitCode())
}

func TestCompile_OnlyDuplicatedIDIsNotEmitted(t *testing.T) {
	reg := prompt.NewRegistry()
	problems := reg.RegisterAll(agent("alpha"), agent("alpha"))
	require.Len(t, problems, 1)
	c, _ := newCompiler(t, &Workspace{Registry: reg, Problems: problems}, testConfig())

	report, err := c.Compile(context.Background(), Request{Targets: []string{target.Claude}, Only: []string{"alpha"}})
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0], prompt.ErrDuplicateID)
	assert.Empty(t, report.Artifacts)
}

func TestCompile_UnknownTarget(t *testing.T) {
	c, _ := newCompiler(t, workspace(t, agent("alpha")), testConfig())
	_, err := c.Compile(context.Background(), Request{Targets: []string{"cursor"}})
	assert.Error(t, err)
}

func TestCompile_Deterministic(t *testing.T) {
	defs := func() []*prompt.Definition {
		return []*prompt.Definition{include("shared"), include("style", "shared"), agent("alpha", "style", "shared"), agent("beta", "shared")}
	}
	c1, first := newCompiler(t, workspace(t, defs()...), testConfig())
	_, err := c1.Compile(context.Background(), Request{})
	require.NoError(t, err)

	c2, second := newCompiler(t, workspace(t, defs()...), testConfig())
	_, err = c2.Compile(context.Background(), Request{})
	require.NoError(t, err)

	require.Equal(t, first.Paths(), second.Paths())
	for _, p := range first.Paths() {
		a, _ := first.Get(p)
		b, _ := second.Get(p)
		assert.Empty(t, cmp.Diff(string(a), string(b)), p)
	}
}

func TestCompile_CancelledContext(t *testing.T) {
	c, w := newCompiler(t, workspace(t, agent("alpha"), agent("beta")), testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := c.Compile(ctx, Request{Targets: []string{target.Claude}})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, w.Paths())
}

type fakeRecorder struct {
	mu        sync.Mutex
	sessions  []string
	artifacts []ledger.ArtifactRecord
	failures  []ledger.FailureRecord
}

func (r *fakeRecorder) Record(_ context.Context, sessionID string, artifacts []ledger.ArtifactRecord, failures []ledger.FailureRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, sessionID)
	r.artifacts = append(r.artifacts, artifacts...)
	r.failures = append(r.failures, failures...)
	return nil
}

func TestCompile_RecordsToLedger(t *testing.T) {
	rec := &fakeRecorder{}
	c, _ := newCompiler(t, workspace(t, agent("alpha"), agent("beta", "ghost")), testConfig(), WithRecorder(rec))

	_, err := c.Compile(context.Background(), Request{Targets: []string{target.Gemini}})
	require.NoError(t, err)

	assert.Equal(t, []string{"session-1"}, rec.sessions)
	require.Len(t, rec.artifacts, 1)
	assert.Equal(t, "alpha", rec.artifacts[0].DefinitionID)
	assert.Equal(t, ".gemini/agents/alpha.md", rec.artifacts[0].Path)
	require.Len(t, rec.failures, 1)
	assert.Equal(t, "structural", rec.failures[0].Kind)
}

func TestCompile_WithSQLiteLedger(t *testing.T) {
	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer l.Close()

	c, _ := newCompiler(t, workspace(t, agent("alpha")), testConfig(), WithRecorder(l))
	report, err := c.Compile(context.Background(), Request{Targets: []string{target.Claude}})
	require.NoError(t, err)

	hash, ok, err := l.LastHash(context.Background(), "alpha", target.Claude)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, report.Artifacts[0].Hash, hash)
	assert.False(t, report.Artifacts[0].Unchanged, "nothing recorded before the first build")

	again, err := c.Compile(context.Background(), Request{Targets: []string{target.Claude}})
	require.NoError(t, err)
	require.Len(t, again.Artifacts, 1)
	assert.True(t, again.Artifacts[0].Unchanged)
	assert.Equal(t, 1, again.Unchanged())
	assert.Contains(t, again.Summary(), "(1 unchanged)")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(workspace(t), WithConfig(Config{Workers: 0}))
	assert.Error(t, err)
}

func TestLoadWorkspace_CatalogAndProjectFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "definitions"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "definitions", "agents.yaml"), []byte(`
kind: agent
id: docs-writer
description: Writes docs for {{ PROJECT_DIRECTORY }}
includes: [core-constraints]
fragments:
  - guideline: tone
    text: Plain words.
---
kind: agent
id: code-reviewer
description: Clashes with the catalog
`), 0644))

	cfg := config.DefaultConfig()
	cfg.Project.Root = root
	ws, err := LoadWorkspace(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, ws.Problems, 1)
	assert.ErrorIs(t, ws.Problems[0], prompt.ErrDuplicateID)
	_, ok := ws.Registry.Get("docs-writer")
	assert.True(t, ok)
	_, ok = ws.Registry.Get("brain")
	assert.True(t, ok)

	ccfg := ConfigFrom(cfg)
	ccfg.SessionID = "s"
	ccfg.Now = testNow
	c, w := newCompiler(t, ws, ccfg)
	report, err := c.Compile(context.Background(), Request{Targets: []string{target.Claude}})
	require.NoError(t, err)

	assert.Equal(t, 1, report.ExitCode())
	content, ok := w.Get(".claude/agents/docs-writer.md")
	require.True(t, ok)
	assert.Contains(t, string(content), "Writes docs for "+root)
	_, ok = w.Get("CLAUDE.md")
	assert.True(t, ok)
}

func TestLoadWorkspace_BadFileDoesNotAbortBatch(t *testing.T) {
	root := t.TempDir()
	defsDir := filepath.Join(root, "definitions")
	require.NoError(t, os.MkdirAll(defsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(defsDir, "good.yaml"), []byte(`
kind: agent
id: good
description: Compiles regardless of its neighbours
fragments:
  - guideline: tone
    text: Plain words.
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(defsDir, "bad.yaml"), []byte(`
kind: agent
id: bad
description: Has a fragment entry with no id
fragments:
  - text: orphan
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(defsDir, "broken.yaml"), []byte("kind: [agent\n"), 0644))

	cfg := config.DefaultConfig()
	cfg.Project.Root = root
	cfg.Catalog.Enabled = false
	ws, err := LoadWorkspace(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, ws.Problems, 1)
	assert.Contains(t, ws.Problems[0].Error(), "definitions/broken.yaml")

	ccfg := ConfigFrom(cfg)
	ccfg.SessionID = "s"
	ccfg.Now = testNow
	c, w := newCompiler(t, ws, ccfg)
	report, err := c.Compile(context.Background(), Request{Targets: []string{target.Claude}})
	require.NoError(t, err)

	_, ok := w.Get(".claude/agents/good.md")
	assert.True(t, ok, "the valid definition still compiles")
	_, ok = w.Get(".claude/agents/bad.md")
	assert.False(t, ok)

	failed := make(map[string]FailureKind)
	for _, f := range report.Failures {
		failed[f.DefinitionID] = f.Kind
	}
	assert.Equal(t, map[string]FailureKind{
		"bad":                     FailureValidation,
		"definitions/broken.yaml": FailureValidation,
	}, failed)
	assert.Equal(t, 1, report.ExitCode())
}

func TestFSWriter_AtomicReplace(t *testing.T) {
	root := t.TempDir()
	w := NewFSWriter(root)
	ctx := context.Background()

	require.NoError(t, w.Write(ctx, ".claude/skills/commit/SKILL.md", []byte("first")))
	require.NoError(t, w.Write(ctx, ".claude/skills/commit/SKILL.md", []byte("second")))

	data, err := os.ReadFile(filepath.Join(root, ".claude", "skills", "commit", "SKILL.md"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Join(root, ".claude", "skills", "commit"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want FailureKind
	}{
		{&prompt.CycleError{Path: []string{"a", "a"}}, FailureStructural},
		{&prompt.MissingIncludeError{From: "a", Missing: "b"}, FailureStructural},
		{&prompt.UnresolvedVariableError{Names: []string{"X"}}, FailureSubstitution},
		{&prompt.ValidationError{Kind: prompt.ErrInvalidFragment}, FailureValidation},
		{errors.New("permission denied"), FailureIO},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), tt.err.Error())
	}
}

func TestReport_ExitCode(t *testing.T) {
	r := &Report{}
	assert.Equal(t, 0, r.ExitCode())
	assert.True(t, r.Succeeded())
	r.Failures = []Failure{{DefinitionID: "a", Kind: FailureIO, Err: errors.New("x")}}
	assert.Equal(t, 2, r.ExitCode())
	assert.False(t, r.Succeeded())
	r.Artifacts = []Artifact{{DefinitionID: "b"}}
	assert.Equal(t, 1, r.ExitCode())
}

func TestReport_FailuresOf(t *testing.T) {
	r := &Report{Failures: []Failure{
		{DefinitionID: "a", Kind: FailureStructural, Err: prompt.ErrCycle},
		{DefinitionID: "b", Kind: FailureIO, Err: errors.New("disk full")},
		{DefinitionID: "c", Kind: FailureStructural, Err: prompt.ErrMissingInclude},
	}}
	structural := r.FailuresOf(FailureStructural)
	require.Len(t, structural, 2)
	assert.Equal(t, "c", structural[1].DefinitionID)
	assert.Empty(t, r.FailuresOf(FailureSubstitution))
}

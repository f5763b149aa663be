package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainc/internal/prompt"
)

const reviewerYAML = `kind: agent
id: CodeReviewer
description: Reviews pull requests
purpose: |
  Review changes for correctness.
color: blue
model: sonnet
meta:
  tools: Read, Grep
includes:
  - core_constraints
fragments:
  - guideline: review-focus
    text: Correctness first.
    examples:
      - Check error paths.
      - value: wrap with %w
        key: errors
      - value: Review loop
        phases:
          - id: read
            text: Read the diff.
          - id: comment
            text: Leave comments.
    phases:
      - id: approve
        text: Approve when clean.
  - rule: no-secrets
    severity: CRITICAL
    text: Never approve committed secrets.
    why: Leaks are permanent.
    on_violation: Request changes.
`

const sharedYAML = `- kind: include
  id: core-constraints
  fragments:
    - rule: stay-in-scope
      severity: high
      text: Only touch what the task needs.
---
kind: include
id: quality-gates
fragments:
  - guideline: gates
    text: Run tests before finishing.
`

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func construct(t *testing.T, d *prompt.Definition) []prompt.Fragment {
	t.Helper()
	fragments, err := d.Construct()
	require.NoError(t, err)
	return fragments
}

func TestParse_SingleDefinition(t *testing.T) {
	defs, problems := Parse([]byte(reviewerYAML), "definitions/agents/reviewer.yaml")
	require.Empty(t, problems)
	require.Len(t, defs, 1)

	d := defs[0]
	assert.Equal(t, prompt.Agent, d.Kind)
	assert.Equal(t, "code-reviewer", d.Meta.ID, "ids are normalized to kebab-case")
	assert.Equal(t, "Review changes for correctness.", d.Meta.Purpose)
	assert.Equal(t, "Read, Grep", d.Meta.Extra["tools"])
	assert.Equal(t, []string{"core-constraints"}, d.Includes)
	assert.Equal(t, "definitions/agents/reviewer.yaml", d.Source)

	fragments := construct(t, d)
	require.Len(t, fragments, 2)

	g := fragments[0]
	assert.Equal(t, prompt.KindGuideline, g.Kind)
	require.Len(t, g.Children, 4)
	assert.Equal(t, prompt.KindExample, g.Children[0].Kind)
	assert.Equal(t, prompt.KindKeyValue, g.Children[1].Kind)
	assert.Equal(t, "errors", g.Children[1].Key)
	assert.Len(t, g.Children[2].Children, 2)
	assert.Equal(t, prompt.KindPhase, g.Children[3].Kind)

	r := fragments[1]
	assert.Equal(t, prompt.SeverityCritical, r.Severity)
	assert.Equal(t, "Request changes.", r.OnViolation)
}

func TestParse_ListsAndMultipleDocuments(t *testing.T) {
	defs, problems := Parse([]byte(sharedYAML), "shared.yaml")
	require.Empty(t, problems)
	require.Len(t, defs, 2)
	assert.Equal(t, "core-constraints", defs[0].Meta.ID)
	assert.Equal(t, "shared.yaml#1", defs[0].Source)
	assert.Equal(t, "quality-gates", defs[1].Meta.ID)
}

func TestParse_FileProblems(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing id", "kind: include\n", "definition id is required"},
		{"scalar document", "just a string\n", "expected a definition mapping or list"},
		{"syntax", "kind: [include\n", "bad.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defs, problems := Parse([]byte(tt.yaml), "bad.yaml")
			assert.Empty(t, defs)
			require.Len(t, problems, 1)
			assert.Contains(t, problems[0].Error(), tt.wantErr)

			var fe *FileError
			require.True(t, errors.As(problems[0], &fe))
			assert.ErrorIs(t, problems[0], prompt.ErrInvalidDefinition)
		})
	}
}

func TestParse_BadEntryKeepsSiblings(t *testing.T) {
	defs, problems := Parse([]byte(`- kind: include
  id: good
- kind: include
- kind: include
  id: [not, a, string]
- kind: include
  id: also-good
`), "shared.yaml")

	require.Len(t, problems, 2)
	assert.Contains(t, problems[0].Error(), "shared.yaml#2")
	assert.Contains(t, problems[1].Error(), "shared.yaml#3")
	require.Len(t, defs, 2)
	assert.Equal(t, "good", defs[0].Meta.ID)
	assert.Equal(t, "also-good", defs[1].Meta.ID)
	assert.Equal(t, "shared.yaml#4", defs[1].Source)
}

func TestParse_DefinitionProblemsFailConstruction(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad kind", "kind: archetype\nid: x\n", "unknown definition kind"},
		{"both guideline and rule", "kind: include\nid: x\nfragments:\n  - guideline: a\n    rule: b\n", "declares both"},
		{"neither", "kind: include\nid: x\nfragments:\n  - text: orphan\n", "needs a guideline or rule id"},
		{"rule with examples", "kind: include\nid: x\nfragments:\n  - rule: r\n    severity: low\n    text: t\n    examples: [e]\n", "cannot carry examples or phases"},
		{"rule with phases", "kind: include\nid: x\nfragments:\n  - rule: r\n    severity: low\n    text: t\n    phases:\n      - id: p\n        text: step\n", "cannot carry examples or phases"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defs, problems := Parse([]byte(tt.yaml), "bad.yaml")
			require.Empty(t, problems)
			require.Len(t, defs, 1)
			assert.Equal(t, "x", defs[0].Meta.ID)

			_, err := defs[0].Construct()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var ve *prompt.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, "x", ve.Definition)
		})
	}
}

func TestParse_InvalidSeverityFailsAtConstruction(t *testing.T) {
	defs, problems := Parse([]byte("kind: include\nid: x\nfragments:\n  - rule: r\n    severity: urgent\n    text: t\n"), "x.yaml")
	require.Empty(t, problems)

	_, err := defs[0].Construct()
	require.Error(t, err)
	assert.True(t, errors.Is(err, prompt.ErrInvalidFragment))
	assert.Contains(t, err.Error(), `unknown severity "urgent"`)
}

func TestLoader_Load(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "definitions/agents/reviewer.yaml", reviewerYAML)
	writeFile(t, root, "definitions/shared/shared.yml", sharedYAML)
	writeFile(t, root, "definitions/empty.yaml", "   \n")
	writeFile(t, root, "notes/ignored.yaml", "kind: include\nid: ignored\n")

	l := New(root, []string{"definitions/**/*.yaml", "definitions/**/*.yml"}, nil)
	defs, problems, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, problems)

	var ids []string
	for _, d := range defs {
		ids = append(ids, d.Meta.ID)
	}
	assert.Equal(t, []string{"code-reviewer", "core-constraints", "quality-gates"}, ids)
}

func TestLoader_BrokenFileDoesNotAbortLoad(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "definitions/broken.yaml", "kind: include\nid: [x\n")
	writeFile(t, root, "definitions/good.yaml", "kind: include\nid: good\n")
	writeFile(t, root, "definitions/gen.go", "package main\nfunc Definitions( {")

	defs, problems, err := New(root, []string{"definitions/**/*.yaml"}, []string{"definitions/**/*.go"}).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "good", defs[0].Meta.ID)

	require.Len(t, problems, 2)
	assert.Contains(t, problems[0].Error(), "definitions/broken.yaml")
	assert.Contains(t, problems[1].Error(), "definitions/gen.go")
}

func TestLoader_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "definitions/a.yaml", "kind: include\nid: a\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := New(root, []string{"definitions/**/*.yaml"}, nil).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoader_DiscoverDeduplicates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "definitions/a.yaml", "kind: include\nid: a\n")

	l := New(root, []string{"definitions/*.yaml", "definitions/**/*.yaml"}, nil)
	yamlFiles, scripts, err := l.Discover()
	require.NoError(t, err)
	assert.Len(t, yamlFiles, 1)
	assert.Empty(t, scripts)
}

func TestLoader_Owns(t *testing.T) {
	root := t.TempDir()
	l := New(root, []string{"definitions/**/*.yaml"}, []string{"definitions/**/*.go"})

	assert.True(t, l.Owns(filepath.Join(root, "definitions", "agents", "a.yaml")))
	assert.True(t, l.Owns(filepath.Join(root, "definitions", "gen.go")))
	assert.False(t, l.Owns(filepath.Join(root, "README.md")))
}

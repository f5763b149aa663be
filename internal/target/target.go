// Package target renders assembled prompt bodies into the on-disk formats
// expected by each supported coding agent.
package target

import (
	"fmt"
	"path/filepath"
	"sort"

	"brainc/internal/prompt"
)

// Supported target names.
const (
	Claude = "claude"
	Codex  = "codex"
	Qwen   = "qwen"
	Gemini = "gemini"
)

// Envelope is the wrapper placed around a rendered body.
type Envelope int

const (
	EnvelopeNone Envelope = iota
	EnvelopeFrontMatter
	EnvelopeTOML
	EnvelopeComment
)

func (e Envelope) String() string {
	switch e {
	case EnvelopeFrontMatter:
		return "front-matter"
	case EnvelopeTOML:
		return "toml"
	case EnvelopeComment:
		return "comment"
	}
	return "none"
}

// Target describes one compilation target.
type Target struct {
	Name string

	// RootFile is the brain instruction file written at the project root.
	RootFile string

	// OutputRoot is the directory, relative to the project root, holding agents,
	// commands and skills.
	OutputRoot string

	// tomlCommands emits commands as TOML files instead of Markdown.
	tomlCommands bool

	// commentHeader replaces front matter with an HTML comment header.
	commentHeader bool
}

var builtin = map[string]Target{
	Claude: {Name: Claude, RootFile: "CLAUDE.md", OutputRoot: ".claude"},
	Codex:  {Name: Codex, RootFile: "AGENTS.md", OutputRoot: ".codex", commentHeader: true},
	Qwen:   {Name: Qwen, RootFile: "QWEN.md", OutputRoot: ".qwen", tomlCommands: true},
	Gemini: {Name: Gemini, RootFile: "GEMINI.md", OutputRoot: ".gemini", tomlCommands: true},
}

// Lookup returns the built-in target with the given name.
func Lookup(name string) (Target, error) {
	t, ok := builtin[name]
	if !ok {
		return Target{}, fmt.Errorf("unknown target %q (valid: %v)", name, Names())
	}
	return t, nil
}

// Names returns every target name sorted.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithOutputRoot returns a copy of t writing under dir. An empty dir keeps
// the default.
func (t Target) WithOutputRoot(dir string) Target {
	if dir != "" {
		t.OutputRoot = dir
	}
	return t
}

// Envelope returns the wrapper used for a definition kind.
func (t Target) Envelope(kind prompt.Kind) Envelope {
	switch {
	case t.commentHeader:
		return EnvelopeComment
	case kind == prompt.Brain:
		return EnvelopeNone
	case kind == prompt.Command && t.tomlCommands:
		return EnvelopeTOML
	}
	return EnvelopeFrontMatter
}

// Path returns the artifact path for a definition relative to the project root.
func (t Target) Path(kind prompt.Kind, id string) (string, error) {
	switch kind {
	case prompt.Brain:
		return t.RootFile, nil
	case prompt.Agent:
		return filepath.Join(t.OutputRoot, "agents", id+".md"), nil
	case prompt.Command:
		ext := ".md"
		if t.Envelope(kind) == EnvelopeTOML {
			ext = ".toml"
		}
		return filepath.Join(t.OutputRoot, "commands", id+ext), nil
	case prompt.Skill:
		return filepath.Join(t.OutputRoot, "skills", id, "SKILL.md"), nil
	}
	return "", fmt.Errorf("%s definitions are not emitted", kind)
}

// Directories returns the per-kind output directories relative to the
// project root, keyed by session variable name.
func (t Target) Directories() map[string]string {
	return map[string]string{
		prompt.VarBrainDirectory:    t.OutputRoot,
		prompt.VarAgentsDirectory:   filepath.Join(t.OutputRoot, "agents"),
		prompt.VarCommandsDirectory: filepath.Join(t.OutputRoot, "commands"),
		prompt.VarSkillsDirectory:   filepath.Join(t.OutputRoot, "skills"),
	}
}

// Render wraps body in the envelope for kind. Rendering is a pure function
// of its inputs.
func (t Target) Render(kind prompt.Kind, meta prompt.Meta, body string) ([]byte, error) {
	switch t.Envelope(kind) {
	case EnvelopeFrontMatter:
		return WriteFrontMatter(frontMatterFor(kind, meta), []byte(body))
	case EnvelopeTOML:
		return writeTOMLCommand(meta, body)
	case EnvelopeComment:
		return writeCommentHeader(kind, meta, []byte(body)), nil
	}
	return []byte(body), nil
}

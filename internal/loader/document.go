// Package loader reads definition files from a project and turns them into
// prompt definitions. YAML files are parsed directly; Go scripts are
// interpreted and their returned maps parsed the same way.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"brainc/internal/prompt"
)

// DefinitionFile is the YAML shape of one definition.
type DefinitionFile struct {
	Kind        string            `yaml:"kind"`
	ID          string            `yaml:"id"`
	Description string            `yaml:"description,omitempty"`
	Purpose     string            `yaml:"purpose,omitempty"`
	Color       string            `yaml:"color,omitempty"`
	Model       string            `yaml:"model,omitempty"`
	Meta        map[string]string `yaml:"meta,omitempty"`
	Includes    []string          `yaml:"includes,omitempty"`
	Fragments   []FragmentSpec    `yaml:"fragments,omitempty"`
}

// FragmentSpec is one top-level guideline or rule entry. Exactly one of
// Guideline and Rule names the fragment.
type FragmentSpec struct {
	Guideline   string        `yaml:"guideline,omitempty"`
	Rule        string        `yaml:"rule,omitempty"`
	Text        string        `yaml:"text,omitempty"`
	Severity    string        `yaml:"severity,omitempty"`
	Why         string        `yaml:"why,omitempty"`
	OnViolation string        `yaml:"on_violation,omitempty"`
	Examples    []ExampleSpec `yaml:"examples,omitempty"`
	Phases      []PhaseSpec   `yaml:"phases,omitempty"`
}

// ExampleSpec is an example. A bare string is shorthand for {value: ...}.
type ExampleSpec struct {
	Value  string      `yaml:"value"`
	Key    string      `yaml:"key,omitempty"`
	Phases []PhaseSpec `yaml:"phases,omitempty"`
}

// UnmarshalYAML accepts either a scalar or a mapping.
func (e *ExampleSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		e.Value = node.Value
		return nil
	}
	type plain ExampleSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*e = ExampleSpec(p)
	return nil
}

// PhaseSpec is one ordered workflow step.
type PhaseSpec struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
}

// FileError is a definition file, or one entry of it, that could not be
// turned into a definition. The rest of the project still loads.
type FileError struct {
	Source string
	Err    error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *FileError) Unwrap() []error { return []error{prompt.ErrInvalidDefinition, e.Err} }

// entry is one decoded definition document, or the error decoding it.
type entry struct {
	file DefinitionFile
	err  error
}

// Parse decodes every YAML document in data. A document may hold one
// definition or a list of them. source is recorded on each definition.
// Entries that cannot become a definition are returned as problems; a syntax
// error ends the file but keeps the entries decoded before it.
func Parse(data []byte, source string) ([]*prompt.Definition, []error) {
	var entries []entry
	var problems []error

	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			problems = append(problems, &FileError{Source: source, Err: err})
			break
		}
		if len(node.Content) == 0 {
			continue
		}

		doc := node.Content[0]
		switch doc.Kind {
		case yaml.SequenceNode:
			for _, item := range doc.Content {
				entries = append(entries, decodeEntry(item))
			}
		case yaml.MappingNode:
			entries = append(entries, decodeEntry(doc))
		default:
			problems = append(problems, &FileError{
				Source: source,
				Err:    fmt.Errorf("expected a definition mapping or list (line %d)", doc.Line),
			})
		}
	}

	defs := make([]*prompt.Definition, 0, len(entries))
	for i, e := range entries {
		src := source
		if len(entries) > 1 {
			src = fmt.Sprintf("%s#%d", source, i+1)
		}
		if e.err != nil {
			problems = append(problems, &FileError{Source: src, Err: e.err})
			continue
		}
		d, err := e.file.ToDefinition(src)
		if err != nil {
			problems = append(problems, &FileError{Source: src, Err: err})
			continue
		}
		defs = append(defs, d)
	}
	return defs, problems
}

func decodeEntry(node *yaml.Node) entry {
	var df DefinitionFile
	if err := node.Decode(&df); err != nil {
		return entry{err: err}
	}
	return entry{file: df}
}

// ToDefinition converts the file shape into a Definition whose Build replays
// the fragment entries through the Builder. Ids and include references are
// normalized to kebab-case. Only a missing id is an error here: an unknown
// kind or a malformed fragment entry fails the definition's construction
// pass, so the problem stays with this definition.
func (df DefinitionFile) ToDefinition(source string) (*prompt.Definition, error) {
	id := prompt.KebabCase(df.ID)
	if id == "" {
		return nil, fmt.Errorf("definition id is required")
	}

	kind, err := prompt.ParseKind(df.Kind)
	if err != nil {
		kind = prompt.Kind(strings.ToLower(strings.TrimSpace(df.Kind)))
	}

	type step struct {
		label string
		node  prompt.Node
		err   error
	}
	steps := make([]step, 0, len(df.Fragments))
	for i, fs := range df.Fragments {
		n, err := fs.node()
		steps = append(steps, step{label: fs.label(i), node: n, err: err})
	}

	var includes []string
	for _, inc := range df.Includes {
		includes = append(includes, prompt.KebabCase(inc))
	}

	return &prompt.Definition{
		Kind: kind,
		Meta: prompt.Meta{
			ID:          id,
			Description: strings.TrimSpace(df.Description),
			Purpose:     strings.TrimSpace(df.Purpose),
			Color:       df.Color,
			Model:       df.Model,
			Extra:       df.Meta,
		},
		Includes: includes,
		Build: func(b *prompt.Builder) {
			for _, s := range steps {
				if s.err != nil {
					b.Reject(s.label, s.err)
					continue
				}
				b.Add(s.node)
			}
		},
		Source: source,
	}, nil
}

// label names an entry in error messages.
func (fs FragmentSpec) label(i int) string {
	switch {
	case fs.Guideline != "":
		return fs.Guideline
	case fs.Rule != "":
		return fs.Rule
	}
	return fmt.Sprintf("fragment %d", i+1)
}

func (fs FragmentSpec) node() (prompt.Node, error) {
	switch {
	case fs.Guideline != "" && fs.Rule != "":
		return nil, fmt.Errorf("entry declares both guideline %q and rule %q", fs.Guideline, fs.Rule)
	case fs.Guideline != "":
		g := prompt.Guideline(fs.Guideline).Text(strings.TrimSpace(fs.Text))
		for _, ex := range fs.Examples {
			g = g.Example(ex.builder())
		}
		for _, p := range fs.Phases {
			g = g.Phase(p.ID, strings.TrimSpace(p.Text))
		}
		return g, nil
	case fs.Rule != "":
		if len(fs.Examples) > 0 || len(fs.Phases) > 0 {
			return nil, fmt.Errorf("rule %q cannot carry examples or phases", fs.Rule)
		}
		r := prompt.Rule(fs.Rule).
			Text(strings.TrimSpace(fs.Text)).
			Why(strings.TrimSpace(fs.Why)).
			OnViolation(strings.TrimSpace(fs.OnViolation))
		if sev, err := prompt.ParseSeverity(fs.Severity); err == nil {
			r = r.Severity(sev)
		} else {
			// Left for construction to reject with the fragment id attached.
			r = r.Severity(prompt.Severity(fs.Severity))
		}
		return r, nil
	}
	return nil, fmt.Errorf("entry needs a guideline or rule id")
}

func (ex ExampleSpec) builder() prompt.ExampleBuilder {
	e := prompt.Example(strings.TrimSpace(ex.Value))
	if ex.Key != "" {
		e = e.Key(ex.Key)
	}
	for _, p := range ex.Phases {
		e = e.Phase(p.ID, strings.TrimSpace(p.Text))
	}
	return e
}

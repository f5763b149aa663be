package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"brainc/internal/logging"
)

// Kind is the variant tag of a Definition.
type Kind string

const (
	Agent   Kind = "agent"
	Command Kind = "command"
	Include Kind = "include"
	Brain   Kind = "brain"
	Skill   Kind = "skill"
)

// AllKinds lists the definition kinds in display order.
func AllKinds() []Kind {
	return []Kind{Brain, Agent, Command, Skill, Include}
}

// ParseKind maps a case-insensitive name to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllKinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown definition kind %q", s)
}

// Emitted reports whether definitions of this kind produce artifacts.
func (k Kind) Emitted() bool {
	return k != Include
}

// RequiresDescription reports whether the kind must declare a description.
func (k Kind) RequiresDescription() bool {
	switch k {
	case Agent, Command, Skill:
		return true
	}
	return false
}

// Meta is the declared metadata of a definition.
type Meta struct {
	ID          string            `json:"id" yaml:"id"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Purpose     string            `json:"purpose,omitempty" yaml:"purpose,omitempty"`
	Color       string            `json:"color,omitempty" yaml:"color,omitempty"`
	Model       string            `json:"model,omitempty" yaml:"model,omitempty"`
	Extra       map[string]string `json:"extra,omitempty" yaml:"meta,omitempty"`
}

// ExtraKeys returns the Extra keys sorted.
func (m Meta) ExtraKeys() []string {
	keys := make([]string, 0, len(m.Extra))
	for k := range m.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Definition is a declared unit of prompt content. Build receives a fresh
// Builder on every construction pass and must not retain it.
type Definition struct {
	Kind     Kind
	Meta     Meta
	Includes []string
	Build    func(b *Builder)

	// Source records where the definition was declared (file path or "catalog").
	Source string
}

// ID returns the definition id.
func (d *Definition) ID() string {
	return d.Meta.ID
}

var idPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidID reports whether id is non-empty kebab-case.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Validate checks the metadata required by the definition's kind and its
// include list. It does not run Build. Self-includes are left to the resolver,
// which reports them as cycles.
func (d *Definition) Validate() error {
	id := d.Meta.ID
	if id == "" {
		return definitionErrorf("(unnamed)", "id is required")
	}
	if !ValidID(id) {
		return definitionErrorf(id, "id must be kebab-case (try %q)", KebabCase(id))
	}
	if _, err := ParseKind(string(d.Kind)); err != nil {
		return definitionErrorf(id, "%v", err)
	}
	if d.Kind.RequiresDescription() && strings.TrimSpace(d.Meta.Description) == "" {
		return definitionErrorf(id, "%s definitions require a description", d.Kind)
	}

	seen := make(map[string]bool, len(d.Includes))
	for _, inc := range d.Includes {
		switch {
		case inc == "":
			return definitionErrorf(id, "empty include reference")
		case seen[inc]:
			return definitionErrorf(id, "include %q listed twice", inc)
		}
		seen[inc] = true
	}
	return nil
}

// Construct runs the definition's construction pass on a fresh Builder and
// returns the fragments it declared. A panicking Build is reported as a
// validation error.
func (d *Definition) Construct() (fragments []Fragment, err error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	b := NewBuilder(d.Meta.ID)
	if d.Build != nil {
		defer func() {
			if r := recover(); r != nil {
				fragments = nil
				err = definitionErrorf(d.Meta.ID, "construction panicked: %v", r)
			}
		}()
		d.Build(b)
	}

	fragments, err = b.Result()
	if err != nil {
		return nil, err
	}
	logging.Get(logging.CategoryBuilder).Debug("constructed %s %s: %d fragments", d.Kind, d.Meta.ID, len(fragments))
	return fragments, nil
}

// KebabCase converts identifiers such as "CodeReviewer", "code_reviewer" or
// "HTTPServer" to kebab-case ("code-reviewer", "http-server").
func KebabCase(s string) string {
	runes := []rune(strings.TrimSpace(s))
	var b strings.Builder
	dash := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
			b.WriteByte('-')
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					dash()
				}
			}
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLower(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			dash()
		}
	}
	return strings.Trim(b.String(), "-")
}

// Humanize turns a kebab or snake id into Title Case words.
func Humanize(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

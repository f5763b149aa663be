package prompt

import (
	"regexp"
	"strings"

	"brainc/internal/logging"
)

// placeholderPattern matches {{ NAME }} with no nested braces.
var placeholderPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// TemplateEngine replaces {{ NAME }} placeholders with session variables.
// Replacement happens in a single pass; substituted values are never
// rescanned.
type TemplateEngine struct {
	strict bool
}

// NewTemplateEngine creates an engine. In strict mode unresolved
// placeholders are errors instead of warnings.
func NewTemplateEngine(strict bool) *TemplateEngine {
	return &TemplateEngine{strict: strict}
}

// Strict reports whether the engine fails on unresolved placeholders.
func (te *TemplateEngine) Strict() bool {
	return te.strict
}

// Process substitutes every placeholder in content. Unknown names are left
// as written and returned in first-seen order, once each.
func (te *TemplateEngine) Process(content string, s *Session) (string, []string) {
	if !strings.Contains(content, "{{") {
		return content, nil // Fast path: no templates
	}

	var unresolved []string
	seen := make(map[string]bool)

	out := placeholderPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		if name == "" {
			return match
		}
		if v, ok := s.Lookup(name); ok {
			return v
		}
		if !seen[name] {
			seen[name] = true
			unresolved = append(unresolved, name)
		}
		return match
	})
	return out, unresolved
}

// Placeholders lists the distinct variable names referenced in content.
func Placeholders(content string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		name := strings.TrimSpace(m[1])
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Apply substitutes every text field of the resolved fragments and of the
// definition metadata. Each field is processed exactly once. In strict mode
// any unresolved name returns an UnresolvedVariableError.
func (te *TemplateEngine) Apply(meta Meta, fragments []ResolvedFragment, s *Session) (Meta, []ResolvedFragment, []string, error) {
	timer := logging.StartTimer(logging.CategoryTemplate, "TemplateEngine.Apply")
	defer timer.Stop()

	var unresolved []string
	seen := make(map[string]bool)
	sub := func(text string) string {
		out, missing := te.Process(text, s)
		for _, name := range missing {
			if !seen[name] {
				seen[name] = true
				unresolved = append(unresolved, name)
			}
		}
		return out
	}

	meta.Description = sub(meta.Description)
	meta.Purpose = sub(meta.Purpose)

	out := make([]ResolvedFragment, len(fragments))
	for i, rf := range fragments {
		f := rf.Fragment.Clone()
		f.Walk(func(n *Fragment) {
			n.Text = sub(n.Text)
			n.Why = sub(n.Why)
			n.OnViolation = sub(n.OnViolation)
			n.Key = sub(n.Key)
		})
		out[i] = ResolvedFragment{Fragment: f, Origin: rf.Origin}
	}

	if len(unresolved) > 0 {
		if te.strict {
			return meta, nil, unresolved, &UnresolvedVariableError{Names: unresolved}
		}
		logging.Get(logging.CategoryTemplate).Warn("unresolved variables left literal: %s", strings.Join(unresolved, ", "))
	}
	return meta, out, unresolved, nil
}

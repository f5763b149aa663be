package prompt

import (
	"errors"
	"strings"

	"brainc/internal/logging"
)

// Node is anything a Builder accepts: guideline and rule builders, or a
// finished Fragment.
type Node interface {
	Fragment() Fragment
}

// appendChild returns a new slice so builder values never share backing arrays.
func appendChild(children []Fragment, f Fragment) []Fragment {
	out := make([]Fragment, len(children), len(children)+1)
	copy(out, children)
	return append(out, f)
}

// =============================================================================
// GUIDELINES
// =============================================================================

// GuidelineBuilder declares a Guideline fragment. Every method returns a new
// value; the receiver is never modified.
type GuidelineBuilder struct {
	f Fragment
}

// Guideline starts a guideline with the given id.
func Guideline(id string) GuidelineBuilder {
	return GuidelineBuilder{f: Fragment{Kind: KindGuideline, ID: id}}
}

// Text sets the guideline body.
func (g GuidelineBuilder) Text(body string) GuidelineBuilder {
	g.f.Text = body
	return g
}

// Example appends an example, key-value or workflow example.
func (g GuidelineBuilder) Example(ex ExampleBuilder) GuidelineBuilder {
	g.f.Children = appendChild(g.f.Children, ex.Fragment())
	return g
}

// Examples appends plain examples in order.
func (g GuidelineBuilder) Examples(bodies ...string) GuidelineBuilder {
	for _, body := range bodies {
		g = g.Example(Example(body))
	}
	return g
}

// Phase appends an ordered step directly under the guideline.
func (g GuidelineBuilder) Phase(id, body string) GuidelineBuilder {
	g.f.Children = appendChild(g.f.Children, Fragment{Kind: KindPhase, ID: id, Text: body})
	return g
}

// Fragment returns a deep copy of the declared guideline.
func (g GuidelineBuilder) Fragment() Fragment {
	return g.f.Clone()
}

// =============================================================================
// EXAMPLES
// =============================================================================

// ExampleBuilder declares an example. Tagging it with Key turns it into a
// key-value example; adding phases turns it into a named workflow.
type ExampleBuilder struct {
	f Fragment
}

// Example starts an example with the given body.
func Example(body string) ExampleBuilder {
	return ExampleBuilder{f: Fragment{Kind: KindExample, Text: body}}
}

// Key documents the example under a key name.
func (e ExampleBuilder) Key(name string) ExampleBuilder {
	e.f.Kind = KindKeyValue
	e.f.Key = name
	return e
}

// Phase appends a workflow step to the example.
func (e ExampleBuilder) Phase(id, body string) ExampleBuilder {
	e.f.Children = appendChild(e.f.Children, Fragment{Kind: KindPhase, ID: id, Text: body})
	return e
}

// Fragment returns a deep copy of the declared example.
func (e ExampleBuilder) Fragment() Fragment {
	return e.f.Clone()
}

// =============================================================================
// RULES
// =============================================================================

// RuleBuilder declares a Rule fragment. A rule must carry a severity and text.
type RuleBuilder struct {
	f Fragment
}

// Rule starts a rule with the given id.
func Rule(id string) RuleBuilder {
	return RuleBuilder{f: Fragment{Kind: KindRule, ID: id}}
}

func (r RuleBuilder) Critical() RuleBuilder { return r.Severity(SeverityCritical) }
func (r RuleBuilder) High() RuleBuilder     { return r.Severity(SeverityHigh) }
func (r RuleBuilder) Medium() RuleBuilder   { return r.Severity(SeverityMedium) }
func (r RuleBuilder) Low() RuleBuilder      { return r.Severity(SeverityLow) }

// Severity sets the rule severity explicitly.
func (r RuleBuilder) Severity(s Severity) RuleBuilder {
	r.f.Severity = s
	return r
}

// Text sets the rule statement.
func (r RuleBuilder) Text(body string) RuleBuilder {
	r.f.Text = body
	return r
}

// Why sets the rationale.
func (r RuleBuilder) Why(rationale string) RuleBuilder {
	r.f.Why = rationale
	return r
}

// OnViolation sets the remedy.
func (r RuleBuilder) OnViolation(remedy string) RuleBuilder {
	r.f.OnViolation = remedy
	return r
}

// Fragment returns a copy of the declared rule.
func (r RuleBuilder) Fragment() Fragment {
	return r.f.Clone()
}

// =============================================================================
// BUILDER
// =============================================================================

// Builder collects the fragments of one definition during one construction
// pass, in call order. It is not safe for concurrent use.
type Builder struct {
	definition string
	fragments  []Fragment
	ids        map[string]bool
	errs       []error
}

// NewBuilder creates an empty builder owned by the named definition.
func NewBuilder(definition string) *Builder {
	return &Builder{
		definition: definition,
		ids:        make(map[string]bool),
	}
}

// Add validates each node and appends it. Invalid nodes are recorded as
// errors and skipped. Add returns the builder so calls can be chained.
func (b *Builder) Add(nodes ...Node) *Builder {
	for _, n := range nodes {
		f := n.Fragment()
		if f.Kind != KindGuideline && f.Kind != KindRule {
			b.fail(f, fragmentErrorf(f.ID, "only guidelines and rules can be added at the top level, got %s", f.Kind))
			continue
		}
		if err := f.Validate(); err != nil {
			b.fail(f, err)
			continue
		}
		key := strings.TrimSpace(f.ID)
		if b.ids[key] {
			b.fail(f, fragmentErrorf(f.ID, "duplicate fragment id %q", f.ID))
			continue
		}
		b.ids[key] = true
		b.fragments = append(b.fragments, f)
	}
	return b
}

// Guideline is shorthand for Add(g).
func (b *Builder) Guideline(g GuidelineBuilder) *Builder { return b.Add(g) }

// Rule is shorthand for Add(r).
func (b *Builder) Rule(r RuleBuilder) *Builder { return b.Add(r) }

// Reject records an entry that never became a fragment, such as a malformed
// entry in a definition file. The construction pass fails with it.
func (b *Builder) Reject(fragment string, err error) *Builder {
	b.fail(Fragment{ID: fragment}, fragmentErrorf(fragment, "%v", err))
	return b
}

func (b *Builder) fail(f Fragment, err error) {
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Definition == "" {
		ve.Definition = b.definition
	}
	logging.Get(logging.CategoryBuilder).Warn("%s: rejected %s %q: %v", b.definition, f.Kind, f.ID, err)
	b.errs = append(b.errs, err)
}

// Len returns the number of accepted fragments.
func (b *Builder) Len() int {
	return len(b.fragments)
}

// Result returns the accepted fragments and the joined validation errors.
func (b *Builder) Result() ([]Fragment, error) {
	out := make([]Fragment, len(b.fragments))
	for i, f := range b.fragments {
		out[i] = f.Clone()
	}
	return out, errors.Join(b.errs...)
}

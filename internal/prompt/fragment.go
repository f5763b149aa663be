// Package prompt implements the brain prompt compiler core.
//
// Definitions (agents, commands, skills, the brain orchestrator and shared
// includes) declare content through a fluent Builder API. The compiler
// resolves each definition's include graph into a flat, deduplicated
// fragment list, substitutes {{ VARIABLE }} placeholders from a per-session
// context and assembles target-agnostic Markdown.
package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// FragmentKind identifies the variant of a content node.
type FragmentKind string

const (
	// KindGuideline is a titled block of guidance with optional examples and phases.
	KindGuideline FragmentKind = "guideline"

	// KindRule is a severity-tagged constraint with rationale and remedy.
	KindRule FragmentKind = "rule"

	// KindExample is a free-text example, or a named workflow when it has phases.
	KindExample FragmentKind = "example"

	// KindPhase is one ordered step of a workflow.
	KindPhase FragmentKind = "phase"

	// KindKeyValue is an example documented under a key name.
	KindKeyValue FragmentKind = "keyvalue"
)

// Severity ranks a Rule.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// ParseSeverity maps a case-insensitive name to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical, nil
	case SeverityHigh:
		return SeverityHigh, nil
	case SeverityMedium:
		return SeverityMedium, nil
	case SeverityLow:
		return SeverityLow, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Fragment is a single content node produced by the Builder.
// Top-level fragments are guidelines and rules; examples, key-values and
// phases only appear as children.
type Fragment struct {
	Kind FragmentKind `json:"kind"`
	ID   string       `json:"id,omitempty"`
	Text string       `json:"text,omitempty"`

	// Rule-only
	Severity    Severity `json:"severity,omitempty"`
	Why         string   `json:"why,omitempty"`
	OnViolation string   `json:"on_violation,omitempty"`

	// KeyValue-only
	Key string `json:"key,omitempty"`

	Children []Fragment `json:"children,omitempty"`
}

// Clone creates a deep copy of the fragment.
func (f Fragment) Clone() Fragment {
	clone := f
	if f.Children != nil {
		clone.Children = make([]Fragment, len(f.Children))
		for i, c := range f.Children {
			clone.Children[i] = c.Clone()
		}
	}
	return clone
}

// Validate checks the fragment and its children for missing required parts.
func (f Fragment) Validate() error {
	switch f.Kind {
	case KindGuideline:
		if strings.TrimSpace(f.ID) == "" {
			return fragmentErrorf("guideline", "id is required")
		}
		if strings.TrimSpace(f.Text) == "" && len(f.Children) == 0 {
			return fragmentErrorf(f.ID, "guideline has neither text nor examples")
		}
	case KindRule:
		if strings.TrimSpace(f.ID) == "" {
			return fragmentErrorf("rule", "id is required")
		}
		if f.Severity == "" {
			return fragmentErrorf(f.ID, "rule severity is required")
		}
		if _, err := ParseSeverity(string(f.Severity)); err != nil {
			return fragmentErrorf(f.ID, "%v", err)
		}
		if strings.TrimSpace(f.Text) == "" {
			return fragmentErrorf(f.ID, "rule text is required")
		}
	case KindExample, KindKeyValue:
		if strings.TrimSpace(f.Text) == "" {
			return fragmentErrorf(f.ID, "example body is required")
		}
		if f.Kind == KindKeyValue && strings.TrimSpace(f.Key) == "" {
			return fragmentErrorf(f.ID, "key-value example needs a key")
		}
	case KindPhase:
		if strings.TrimSpace(f.ID) == "" {
			return fragmentErrorf("phase", "phase id is required")
		}
		if strings.TrimSpace(f.Text) == "" {
			return fragmentErrorf(f.ID, "phase body is required")
		}
	default:
		return fragmentErrorf(f.ID, "unknown fragment kind %q", f.Kind)
	}

	for _, c := range f.Children {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Walk visits the fragment and its descendants depth-first.
func (f *Fragment) Walk(fn func(*Fragment)) {
	fn(f)
	for i := range f.Children {
		f.Children[i].Walk(fn)
	}
}

// EstimateTokens estimates the token count for content using chars/4 approximation.
func EstimateTokens(content string) int {
	if content == "" {
		return 0
	}
	return (len(content) + 3) / 4
}

// HashContent computes a SHA256 hash of content for change detection.
func HashContent(content string) string {
	if content == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

package prompt

import (
	"fmt"
	"strings"

	"brainc/internal/logging"
)

// Assembler renders a resolved fragment list as target-agnostic Markdown.
type Assembler struct {
	// sectionSeparator is inserted between blocks
	sectionSeparator string
}

// NewAssembler creates an assembler with default settings.
func NewAssembler() *Assembler {
	return &Assembler{sectionSeparator: "\n\n"}
}

// Assemble renders the title, the purpose paragraph and every fragment in
// order. The output always ends with a single newline.
func (a *Assembler) Assemble(meta Meta, fragments []ResolvedFragment) string {
	timer := logging.StartTimer(logging.CategoryEmit, "Assembler.Assemble")
	defer timer.Stop()

	blocks := []string{"# " + Humanize(meta.ID)}
	if p := strings.TrimSpace(meta.Purpose); p != "" {
		blocks = append(blocks, p)
	}

	for _, rf := range fragments {
		switch rf.Fragment.Kind {
		case KindGuideline:
			blocks = append(blocks, renderGuideline(rf.Fragment))
		case KindRule:
			blocks = append(blocks, renderRule(rf.Fragment))
		}
	}

	out := strings.Join(blocks, a.sectionSeparator) + "\n"
	logging.Get(logging.CategoryEmit).Debug("assembled %s: %d fragments, %d chars, ~%d tokens",
		meta.ID, len(fragments), len(out), EstimateTokens(out))
	return out
}

func renderGuideline(f Fragment) string {
	parts := []string{"## " + Humanize(f.ID)}
	if t := strings.TrimSpace(f.Text); t != "" {
		parts = append(parts, t)
	}

	// Consecutive bullets and numbered phases form separate lists.
	var list []string
	numbered := false
	phase := 0
	flush := func() {
		if len(list) > 0 {
			parts = append(parts, strings.Join(list, "\n"))
			list = nil
		}
	}

	for _, c := range f.Children {
		isPhase := c.Kind == KindPhase
		if len(list) > 0 && isPhase != numbered {
			flush()
		}
		numbered = isPhase

		switch c.Kind {
		case KindPhase:
			phase++
			list = append(list, numberedItem(phase, c, 0))
		case KindKeyValue:
			list = append(list, bullet(fmt.Sprintf("**%s**: %s", strings.TrimSpace(c.Key), strings.TrimSpace(c.Text))))
		case KindExample:
			item := bullet(strings.TrimSpace(c.Text))
			step := 0
			for _, p := range c.Children {
				if p.Kind != KindPhase {
					continue
				}
				step++
				item += "\n" + numberedItem(step, p, 2)
			}
			list = append(list, item)
		}
	}
	flush()

	return strings.Join(parts, "\n\n")
}

func renderRule(f Fragment) string {
	parts := []string{fmt.Sprintf("### %s (%s)", f.ID, strings.ToUpper(string(f.Severity)))}
	parts = append(parts, strings.TrimSpace(f.Text))

	var notes []string
	if w := strings.TrimSpace(f.Why); w != "" {
		notes = append(notes, bullet("**Why:** "+w))
	}
	if v := strings.TrimSpace(f.OnViolation); v != "" {
		notes = append(notes, bullet("**On violation:** "+v))
	}
	if len(notes) > 0 {
		parts = append(parts, strings.Join(notes, "\n"))
	}
	return strings.Join(parts, "\n\n")
}

func bullet(text string) string {
	return "- " + indentContinuation(text, "  ")
}

func numberedItem(n int, p Fragment, indent int) string {
	pad := strings.Repeat(" ", indent)
	prefix := fmt.Sprintf("%d. ", n)
	body := fmt.Sprintf("**%s**: %s", p.ID, strings.TrimSpace(p.Text))
	return pad + prefix + indentContinuation(body, pad+strings.Repeat(" ", len(prefix)))
}

// indentContinuation indents every line after the first.
func indentContinuation(text, pad string) string {
	if !strings.Contains(text, "\n") {
		return text
	}
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		if lines[i] != "" {
			lines[i] = pad + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

// PromptStats summarizes an assembled body.
type PromptStats struct {
	CharCount      int
	TokenCount     int
	LineCount      int
	FragmentCount  int
	GuidelineCount int
	RuleCount      int
	SeverityCounts map[Severity]int
}

// AnalyzePrompt returns statistics about an assembled body.
func AnalyzePrompt(body string, fragments []ResolvedFragment) PromptStats {
	stats := PromptStats{
		CharCount:      len(body),
		TokenCount:     EstimateTokens(body),
		LineCount:      strings.Count(body, "\n"),
		FragmentCount:  len(fragments),
		SeverityCounts: make(map[Severity]int),
	}
	for _, rf := range fragments {
		switch rf.Fragment.Kind {
		case KindGuideline:
			stats.GuidelineCount++
		case KindRule:
			stats.RuleCount++
			stats.SeverityCounts[rf.Fragment.Severity]++
		}
	}
	return stats
}

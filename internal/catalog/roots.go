package catalog

import (
	"brainc/internal/prompt"
)

func brain() *prompt.Definition {
	return &prompt.Definition{
		Kind: prompt.Brain,
		Meta: prompt.Meta{
			ID:      "brain",
			Purpose: "You orchestrate work in {{ PROJECT_DIRECTORY }}. Plan, delegate to specialists and keep the quality bar.",
		},
		Includes: []string{"core-constraints", "delegation-protocol", "workflow-phases"},
		Build: func(b *prompt.Builder) {
			b.Add(
				prompt.Guideline("project-layout").
					Text("Generated instructions for {{ TARGET }} live under {{ BRAIN_DIRECTORY }}.").
					Example(prompt.Example("{{ AGENTS_DIRECTORY }}").Key("agents")).
					Example(prompt.Example("{{ COMMANDS_DIRECTORY }}").Key("commands")).
					Example(prompt.Example("{{ SKILLS_DIRECTORY }}").Key("skills")),
				prompt.Rule("edit-sources-not-output").High().
					Text("Edit definitions, never the generated files. Regenerate with `brainc compile`.").
					Why("Generated files are overwritten on the next compile.").
					OnViolation("Move the edit into the definition and recompile."),
			)
		},
	}
}

func codeReviewer() *prompt.Definition {
	return &prompt.Definition{
		Kind: prompt.Agent,
		Meta: prompt.Meta{
			ID:          "code-reviewer",
			Description: "Reviews diffs for correctness, safety and maintainability. Use after any non-trivial change.",
			Purpose:     "You review code changes and report concrete, actionable findings.",
			Color:       "blue",
			Model:       "sonnet",
		},
		Includes: []string{"core-constraints", "quality-gates"},
		Build: func(b *prompt.Builder) {
			b.Add(
				prompt.Guideline("review-focus").
					Text("Read the whole diff before commenting. Order findings by impact.").
					Examples(
						"Error paths that drop or mask errors.",
						"Concurrency without clear ownership of shared state.",
						"Public API changes without tests.",
					).
					Example(prompt.Example("file:line, problem, suggested fix").Key("finding format")),
				prompt.Guideline("review-loop").
					Phase("scan", "Skim the diff to understand intent.").
					Phase("trace", "Follow each changed path through its callers.").
					Phase("report", "Write findings, most severe first."),
				prompt.Rule("no-style-nits-first").Low().
					Text("Do not lead with formatting or naming nits when correctness issues exist."),
			)
		},
	}
}

func taskPlan() *prompt.Definition {
	return &prompt.Definition{
		Kind: prompt.Command,
		Meta: prompt.Meta{
			ID:          "task-plan",
			Description: "Break a request into an ordered, verifiable plan",
			Model:       "opus",
			Extra:       map[string]string{"argument-hint": "<task description>"},
		},
		Includes: []string{"workflow-phases"},
		Build: func(b *prompt.Builder) {
			b.Add(
				prompt.Guideline("plan-shape").
					Text("Produce a numbered plan. Each step names the files it touches and how it is verified.").
					Example(prompt.Example("Add retry to the HTTP client").
						Phase("locate", "Find the client constructor and its callers.").
						Phase("change", "Wrap requests in a bounded retry with backoff.").
						Phase("test", "Add a test with a flaky fake server.")),
				prompt.Rule("plan-before-edit").Medium().
					Text("Do not edit files while running this command; only plan.").
					OnViolation("Discard the edits and return the plan."),
			)
		},
	}
}

func commitHygiene() *prompt.Definition {
	return &prompt.Definition{
		Kind: prompt.Skill,
		Meta: prompt.Meta{
			ID:          "commit-hygiene",
			Description: "Write focused commits with clear messages",
		},
		Build: func(b *prompt.Builder) {
			b.Add(
				prompt.Guideline("commit-messages").
					Text("Subject in the imperative mood, at most 72 characters. Body explains what and why.").
					Example(prompt.Example("Fix race in watcher shutdown").Key("good")).
					Example(prompt.Example("fixed stuff").Key("bad")),
				prompt.Rule("one-change-per-commit").Medium().
					Text("Each commit contains one logical change.").
					Why("Small commits are easier to review, bisect and revert."),
			)
		},
	}
}

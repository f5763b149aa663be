package catalog

import (
	"brainc/internal/prompt"
)

func coreConstraints() *prompt.Definition {
	return &prompt.Definition{
		Kind: prompt.Include,
		Meta: prompt.Meta{ID: "core-constraints"},
		Build: func(b *prompt.Builder) {
			b.Add(
				prompt.Rule("stay-in-scope").Critical().
					Text("Change only what the task requires. Leave unrelated code, formatting and files untouched.").
					Why("Unrequested edits hide the real change and make review slower.").
					OnViolation("Revert the unrelated edits and mention them as follow-up suggestions instead."),
				prompt.Rule("no-secrets").Critical().
					Text("Never write credentials, tokens or private keys into files, commits or prompts.").
					Why("Anything committed must be treated as leaked.").
					OnViolation("Stop, remove the secret and tell the user which key must be rotated."),
				prompt.Rule("verify-before-claiming").High().
					Text("Do not report work as done until it has been checked by running the relevant command.").
					Why("Unverified claims cost more time than the check itself."),
			)
		},
	}
}

func qualityGates() *prompt.Definition {
	return &prompt.Definition{
		Kind: prompt.Include,
		Meta: prompt.Meta{ID: "quality-gates"},
		Build: func(b *prompt.Builder) {
			b.Add(
				prompt.Guideline("quality-gates").
					Text("Every change passes these gates before it is handed back.").
					Phase("format", "Run the project formatter on touched files.").
					Phase("lint", "Run the linter and fix new findings.").
					Phase("test", "Run the tests closest to the change, then the full suite if it is fast.").
					Phase("review", "Read the final diff once more as a reviewer would."),
				prompt.Rule("tests-accompany-behavior").High().
					Text("New behavior ships with a test that fails without it.").
					OnViolation("Add the missing test before continuing."),
			)
		},
	}
}

func delegationProtocol() *prompt.Definition {
	return &prompt.Definition{
		Kind:     prompt.Include,
		Meta:     prompt.Meta{ID: "delegation-protocol"},
		Includes: []string{"core-constraints"},
		Build: func(b *prompt.Builder) {
			b.Add(
				prompt.Guideline("delegation").
					Text("Hand focused work to specialist agents in {{ AGENTS_DIRECTORY }} and keep orchestration here.").
					Example(prompt.Example("code-reviewer for any diff larger than a few lines").Key("review")).
					Example(prompt.Example("task-plan from {{ COMMANDS_DIRECTORY }} before multi-step work").Key("planning")).
					Examples("Give each delegate the goal, the relevant files and the definition of done."),
				prompt.Rule("one-owner-per-task").Medium().
					Text("Each delegated task has exactly one owner at a time.").
					Why("Two agents editing the same files produce conflicting changes."),
			)
		},
	}
}

func workflowPhases() *prompt.Definition {
	return &prompt.Definition{
		Kind:     prompt.Include,
		Meta:     prompt.Meta{ID: "workflow-phases"},
		Includes: []string{"quality-gates"},
		Build: func(b *prompt.Builder) {
			b.Add(
				prompt.Guideline("workflow").
					Text("Work moves through explicit phases. Say which phase you are in when it changes.").
					Example(prompt.Example("Feature work").
						Phase("understand", "Read the request and the code it touches.").
						Phase("plan", "Write a short plan and confirm it when the change is large.").
						Phase("implement", "Make the change in small, reviewable steps.").
						Phase("verify", "Pass the quality gates.")).
					Example(prompt.Example("Bug fix").
						Phase("reproduce", "Reproduce the bug with a failing test.").
						Phase("fix", "Fix the cause, not the symptom.").
						Phase("verify", "Show the test passing.")),
			)
		},
	}
}

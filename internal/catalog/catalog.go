// Package catalog declares the built-in definitions shipped with brainc.
// The brain orchestrator is composed from the shared includes declared here.
package catalog

import (
	"brainc/internal/prompt"
)

// Source is recorded on every catalog definition.
const Source = "catalog"

// Definitions returns fresh copies of every built-in definition.
func Definitions() []*prompt.Definition {
	defs := []*prompt.Definition{
		coreConstraints(),
		qualityGates(),
		delegationProtocol(),
		workflowPhases(),
		brain(),
		codeReviewer(),
		taskPlan(),
		commitHygiene(),
	}
	for _, d := range defs {
		d.Source = Source
	}
	return defs
}

// Register adds every built-in definition to reg and returns the rejected
// registrations (normally duplicates of project definitions).
func Register(reg *prompt.Registry) []error {
	return reg.RegisterAll(Definitions()...)
}

// IDs lists the built-in ids in declaration order.
func IDs() []string {
	defs := Definitions()
	ids := make([]string, len(defs))
	for i, d := range defs {
		ids[i] = d.Meta.ID
	}
	return ids
}

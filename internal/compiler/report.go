package compiler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"brainc/internal/prompt"
)

// FailureKind classifies why a (definition, target) pair did not compile.
type FailureKind string

const (
	FailureStructural   FailureKind = "structural"
	FailureValidation   FailureKind = "validation"
	FailureSubstitution FailureKind = "substitution"
	FailureIO           FailureKind = "io"
)

// FailureKinds lists the failure kinds in report order.
func FailureKinds() []FailureKind {
	return []FailureKind{FailureStructural, FailureValidation, FailureSubstitution, FailureIO}
}

// Classify maps an error onto its failure kind. Errors that are not from the
// prompt package are treated as I/O.
func Classify(err error) FailureKind {
	switch {
	case prompt.IsStructural(err):
		return FailureStructural
	case errors.Is(err, prompt.ErrUnresolvedVariable):
		return FailureSubstitution
	case errors.Is(err, prompt.ErrInvalidFragment), errors.Is(err, prompt.ErrInvalidDefinition):
		return FailureValidation
	}
	return FailureIO
}

// Artifact is one rendered and written output file.
type Artifact struct {
	DefinitionID string
	Kind         prompt.Kind
	Target       string
	Path         string // relative to the project root
	Content      []byte
	Hash         string
	Tokens       int
	Warnings     []string
	Manifest     *prompt.Manifest

	// Unchanged is set when the ledger holds the same hash from a previous build.
	Unchanged bool
}

// Failure is one (definition, target) pair that did not compile. Target is
// empty when the failure applies to every target.
type Failure struct {
	DefinitionID string
	Target       string
	Kind         FailureKind
	Err          error
}

func (f Failure) Error() string {
	if f.Target == "" {
		return fmt.Sprintf("%s: %s: %v", f.DefinitionID, f.Kind, f.Err)
	}
	return fmt.Sprintf("%s [%s]: %s: %v", f.DefinitionID, f.Target, f.Kind, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Warning is a non-fatal diagnostic.
type Warning struct {
	DefinitionID string
	Target       string
	Message      string
}

// Report is the outcome of one Compile call.
type Report struct {
	mu sync.Mutex

	SessionID string
	Targets   []string
	StartedAt time.Time
	Duration  time.Duration
	Artifacts []Artifact
	Warnings  []Warning
	Failures  []Failure
}

func (r *Report) addArtifact(a Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Artifacts = append(r.Artifacts, a)
	for _, w := range a.Warnings {
		r.Warnings = append(r.Warnings, Warning{DefinitionID: a.DefinitionID, Target: a.Target, Message: w})
	}
}

func (r *Report) addFailure(id, target string, err error) {
	r.addFailureKind(id, target, Classify(err), err)
}

func (r *Report) addFailureKind(id, target string, kind FailureKind, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, Failure{DefinitionID: id, Target: target, Kind: kind, Err: err})
}

func (r *Report) addWarning(id, target, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, Warning{DefinitionID: id, Target: target, Message: msg})
}

// sort orders every list by definition and target so reports are stable
// regardless of worker scheduling.
func (r *Report) sort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.SliceStable(r.Artifacts, func(i, j int) bool {
		a, b := r.Artifacts[i], r.Artifacts[j]
		if a.DefinitionID != b.DefinitionID {
			return a.DefinitionID < b.DefinitionID
		}
		return a.Target < b.Target
	})
	sort.SliceStable(r.Failures, func(i, j int) bool {
		a, b := r.Failures[i], r.Failures[j]
		if a.DefinitionID != b.DefinitionID {
			return a.DefinitionID < b.DefinitionID
		}
		return a.Target < b.Target
	})
	sort.SliceStable(r.Warnings, func(i, j int) bool {
		a, b := r.Warnings[i], r.Warnings[j]
		if a.DefinitionID != b.DefinitionID {
			return a.DefinitionID < b.DefinitionID
		}
		return a.Target < b.Target
	})
}

// Succeeded reports whether nothing failed.
func (r *Report) Succeeded() bool {
	return len(r.Failures) == 0
}

// ExitCode returns 0 when everything compiled, 2 when failures occurred and
// no artifact was written, and 1 otherwise.
func (r *Report) ExitCode() int {
	switch {
	case len(r.Failures) == 0:
		return 0
	case len(r.Artifacts) == 0:
		return 2
	}
	return 1
}

// FailuresOf returns the failures of one kind.
func (r *Report) FailuresOf(kind FailureKind) []Failure {
	var out []Failure
	for _, f := range r.Failures {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// Artifact returns the artifact for a (definition, target) pair.
func (r *Report) Artifact(id, target string) (Artifact, bool) {
	for _, a := range r.Artifacts {
		if a.DefinitionID == id && a.Target == target {
			return a, true
		}
	}
	return Artifact{}, false
}

// Unchanged returns the number of artifacts identical to their last build.
func (r *Report) Unchanged() int {
	n := 0
	for _, a := range r.Artifacts {
		if a.Unchanged {
			n++
		}
	}
	return n
}

// Summary is a one-line description of the report.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d artifacts (%d unchanged), %d warnings, %d failures in %s",
		len(r.Artifacts), r.Unchanged(), len(r.Warnings), len(r.Failures), r.Duration.Round(time.Millisecond))
}

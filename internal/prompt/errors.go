package prompt

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidFragment    = errors.New("invalid fragment")
	ErrInvalidDefinition  = errors.New("invalid definition")
	ErrDuplicateID        = errors.New("duplicate definition id")
	ErrMissingInclude     = errors.New("missing include")
	ErrCycle              = errors.New("include cycle")
	ErrBrokenInclude      = errors.New("broken include")
	ErrUnresolvedVariable = errors.New("unresolved variable")
)

// ValidationError reports a fragment or definition that failed validation
// during its construction pass.
type ValidationError struct {
	Kind       error // ErrInvalidFragment or ErrInvalidDefinition
	Definition string
	Fragment   string
	Msg        string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Definition != "" {
		fmt.Fprintf(&b, " in %s", e.Definition)
	}
	if e.Fragment != "" {
		fmt.Fprintf(&b, " (%s)", e.Fragment)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Kind }

func fragmentErrorf(fragment, format string, args ...any) error {
	return &ValidationError{Kind: ErrInvalidFragment, Fragment: fragment, Msg: fmt.Sprintf(format, args...)}
}

func definitionErrorf(definition, format string, args ...any) error {
	return &ValidationError{Kind: ErrInvalidDefinition, Definition: definition, Msg: fmt.Sprintf(format, args...)}
}

// CycleError names every definition on an include cycle. Path starts and
// ends with the same id.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// Members returns the distinct ids on the cycle.
func (e *CycleError) Members() []string {
	if len(e.Path) <= 1 {
		return append([]string(nil), e.Path...)
	}
	return append([]string(nil), e.Path[:len(e.Path)-1]...)
}

// MissingIncludeError reports an include reference with no registered definition.
type MissingIncludeError struct {
	From    string
	Missing string
}

func (e *MissingIncludeError) Error() string {
	return fmt.Sprintf("%s: %s includes unknown definition %q", ErrMissingInclude, e.From, e.Missing)
}

func (e *MissingIncludeError) Unwrap() error { return ErrMissingInclude }

// DuplicateError reports two registrations under one id.
type DuplicateError struct {
	ID     string
	First  string
	Second string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: %q declared by %s and %s", ErrDuplicateID, e.ID, e.First, e.Second)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicateID }

// BrokenIncludeError is returned when a root reaches a definition whose own
// construction failed.
type BrokenIncludeError struct {
	Root   string
	Broken string
	Cause  error
}

func (e *BrokenIncludeError) Error() string {
	return fmt.Sprintf("%s: %s depends on %s: %v", ErrBrokenInclude, e.Root, e.Broken, e.Cause)
}

func (e *BrokenIncludeError) Unwrap() []error { return []error{ErrBrokenInclude, e.Cause} }

// UnresolvedVariableError lists placeholders with no value in strict mode.
type UnresolvedVariableError struct {
	Names []string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnresolvedVariable, strings.Join(e.Names, ", "))
}

func (e *UnresolvedVariableError) Unwrap() error { return ErrUnresolvedVariable }

// IsStructural reports whether err is a graph-level configuration error.
func IsStructural(err error) bool {
	return errors.Is(err, ErrCycle) ||
		errors.Is(err, ErrMissingInclude) ||
		errors.Is(err, ErrDuplicateID) ||
		errors.Is(err, ErrBrokenInclude)
}

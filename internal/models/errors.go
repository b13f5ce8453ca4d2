package models

import (
	"fmt"
	"strings"
)

// Kind classifies a failure or warning.
type Kind string

const (
	KindStructural  Kind = "structural"
	KindValidation  Kind = "validation"
	KindReferential Kind = "referential"
	KindConflict    Kind = "conflict"
	KindIO          Kind = "io"
	KindIntegrity   Kind = "integrity"
	KindCancelled   Kind = "cancelled"
	KindLocked      Kind = "locked"
)

// Issue is one structured error or warning line of a report.
type Issue struct {
	Kind    Kind   `json:"kind"`
	Element string `json:"element,omitempty"`
	Check   string `json:"check,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Element == "" {
		return i.Message
	}
	return i.Element + ": " + i.Message
}

// Report is the outcome of a validation pass.
type Report struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// OK reports whether the pass found no errors.
func (r Report) OK() bool { return len(r.Errors) == 0 }

// AddError appends an error issue.
func (r *Report) AddError(kind Kind, element, check, msg string) {
	r.Errors = append(r.Errors, Issue{Kind: kind, Element: element, Check: check, Message: msg})
}

// AddWarning appends a warning issue.
func (r *Report) AddWarning(kind Kind, element, check, msg string) {
	r.Warnings = append(r.Warnings, Issue{Kind: kind, Element: element, Check: check, Message: msg})
}

// Merge appends other's issues, prefixing elements with scope when set.
func (r *Report) Merge(scope string, other Report) {
	for _, is := range other.Errors {
		r.Errors = append(r.Errors, scoped(scope, is))
	}
	for _, is := range other.Warnings {
		r.Warnings = append(r.Warnings, scoped(scope, is))
	}
}

func scoped(scope string, is Issue) Issue {
	if scope == "" {
		return is
	}
	if is.Element == "" {
		is.Element = scope
	} else {
		is.Element = scope + "/" + is.Element
	}
	return is
}

// FieldError names one offending field of a structural or validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned by parsers; it never accompanies a partial document.
type ValidationError struct {
	Kind   Kind
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, strings.Join(msgs, "; "))
}

// Add records a field failure.
func (e *ValidationError) Add(field, msg string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: msg})
}

// HasErrors reports whether any field failure was recorded.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// EngineError is the error returned by mutating operations.
type EngineError struct {
	Kind    Kind
	Element string
	Check   string
	Message string

	// Untouched is set when the operation failed before any write.
	Untouched bool
	// RolledBack is set when a write happened and was reverted from a backup.
	RolledBack bool

	Err error
}

func (e *EngineError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Element != "" {
		b.WriteString(" [" + e.Element + "]")
	}
	if e.Check != "" {
		b.WriteString(" " + e.Check)
	}
	b.WriteString(": " + e.Message)
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	switch {
	case e.RolledBack:
		b.WriteString(" (rolled back)")
	case e.Untouched:
		b.WriteString(" (document untouched)")
	}
	return b.String()
}

func (e *EngineError) Unwrap() error { return e.Err }

// Issue converts the error into a report line.
func (e *EngineError) Issue() Issue {
	msg := e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return Issue{Kind: e.Kind, Element: e.Element, Check: e.Check, Message: msg}
}

// Errorf builds an EngineError of the given kind.
func Errorf(kind Kind, element, check string, err error, format string, args ...any) *EngineError {
	return &EngineError{Kind: kind, Element: element, Check: check, Message: fmt.Sprintf(format, args...), Err: err}
}

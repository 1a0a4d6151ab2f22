// Package errors provides the kinded application errors used across tabsense.
// Every error that can reach the top level carries a Kind, and the Kind decides
// the process exit code in non-interactive mode.
package errors

import (
	"errors"
	"fmt"
)

// Standard errors package helpers re-exported for convenience
var (
	Unwrap = errors.Unwrap
	Is     = errors.Is
	As     = errors.As
	New    = errors.New
)

// Kind classifies an application error.
type Kind int

const (
	Unknown Kind = iota
	// SourceOpen means the source could not be opened at all.
	SourceOpen
	// SourceRead means the source failed while it was being scanned.
	SourceRead
	// FilterSyntax means a filter expression could not be parsed.
	FilterSyntax
	// InvalidConfig means configuration or flag values are unusable.
	InvalidConfig
)

func (k Kind) String() string {
	switch k {
	case SourceOpen:
		return "source-open"
	case SourceRead:
		return "source-read"
	case FilterSyntax:
		return "filter-syntax"
	case InvalidConfig:
		return "invalid-config"
	default:
		return "unknown"
	}
}

// Exit codes for non-interactive invocations.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitSourceOpen   = 2
	ExitFilterSyntax = 3
)

// ApplicationError is the base error type for all application errors
type ApplicationError struct {
	msg  string
	err  error
	kind Kind
}

func (e *ApplicationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *ApplicationError) Unwrap() error { return e.err }

// Kind returns the kind of error
func (e *ApplicationError) Kind() Kind { return e.kind }

// Is matches another ApplicationError of the same kind, so sentinel values
// such as ErrFilterSyntax can be used with errors.Is.
func (e *ApplicationError) Is(target error) bool {
	t, ok := target.(*ApplicationError)
	if !ok {
		return false
	}
	return t.msg == "" && t.err == nil && t.kind == e.kind
}

// Sentinels for errors.Is checks by kind.
var (
	ErrSourceOpen    = &ApplicationError{kind: SourceOpen}
	ErrSourceRead    = &ApplicationError{kind: SourceRead}
	ErrFilterSyntax  = &ApplicationError{kind: FilterSyntax}
	ErrInvalidConfig = &ApplicationError{kind: InvalidConfig}
)

// NewSourceOpenError wraps a failure to open path.
func NewSourceOpenError(path string, err error) error {
	return &ApplicationError{msg: fmt.Sprintf("cannot open %s", path), err: err, kind: SourceOpen}
}

// NewSourceReadError wraps a failure while reading path.
func NewSourceReadError(path string, err error) error {
	return &ApplicationError{msg: fmt.Sprintf("cannot read %s", path), err: err, kind: SourceRead}
}

// NewFilterSyntaxError reports malformed filter text.
func NewFilterSyntaxError(text, reason string) error {
	return &ApplicationError{msg: fmt.Sprintf("invalid filter %q: %s", text, reason), kind: FilterSyntax}
}

// NewConfigError reports an unusable configuration value.
func NewConfigError(msg string, err error) error {
	return &ApplicationError{msg: msg, err: err, kind: InvalidConfig}
}

// KindOf returns the Kind of the first ApplicationError in err's chain.
func KindOf(err error) Kind {
	var ae *ApplicationError
	if errors.As(err, &ae) {
		return ae.kind
	}
	return Unknown
}

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch KindOf(err) {
	case SourceOpen:
		return ExitSourceOpen
	case FilterSyntax:
		return ExitFilterSyntax
	default:
		return ExitFailure
	}
}

// Package apperr implements the error taxonomy the core distinguishes:
// Validation, NotFound, AuthRequired, AuthInvalid, Conflict, Transient,
// Permanent, and Internal. Callers wrap an underlying error with one of
// the sentinel kinds; handlers at the API boundary map kinds to HTTP
// status codes without needing to inspect error strings.
package apperr

import "errors"

// Kind classifies an error for policy purposes (HTTP status, logging,
// retry eligibility).
type Kind int

const (
	Internal Kind = iota
	Validation
	NotFound
	AuthRequired
	AuthInvalid
	Conflict
	Transient
	Permanent
)

type appError struct {
	kind Kind
	msg  string
	err  error
}

func (e *appError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *appError) Unwrap() error { return e.err }

// New builds an error of the given kind with a message.
func New(kind Kind, msg string) error {
	return &appError{kind: kind, msg: msg}
}

// Wrap builds an error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, msg string, err error) error {
	return &appError{kind: kind, msg: msg, err: err}
}

// KindOf returns the Kind of err, or Internal if err does not carry one.
func KindOf(err error) Kind {
	var ae *appError
	if errors.As(err, &ae) {
		return ae.kind
	}
	return Internal
}

// Is reports whether err (or something it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

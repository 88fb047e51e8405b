// Package dberrors implements the error taxonomy from spec.md §7: every
// public operation across quiverdb's managers returns either success or a
// single error describing the first cause, tagged with a Kind so callers
// can branch (NotFound vs Capacity vs Integrity, ...) without parsing
// strings, the way DaemonDB's managers return plain fmt.Errorf strings but
// quiverdb needs programmatic dispatch for recovery and the (out of scope)
// query executor.
package dberrors

import "fmt"

// Kind is the error taxonomy named in spec.md §7.
type Kind int

const (
	KindNotFound Kind = iota
	KindAlreadyExists
	KindInvalidInput
	KindCapacity
	KindIntegrity
	KindIO
	KindAuth
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindInvalidInput:
		return "invalid_input"
	case KindCapacity:
		return "capacity"
	case KindIntegrity:
		return "integrity"
	case KindIO:
		return "io"
	case KindAuth:
		return "auth"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// Error is a single human-readable cause tagged with a Kind.
type Error struct {
	Kind Kind
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.err }

// New builds a tagged error from a message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf builds a tagged error from a format string.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a Kind and a message, preserving the
// original error for errors.Unwrap/errors.Is chains.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

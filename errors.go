package codeindex

import (
	"errors"
	"strings"
)

// Error is the codeindex error domain type.
//
// Errors coming from codeindex components should be able to be inspected as
// ([errors.As]) an *Error at some point in the error chain.
//
// Implementers of codeindex components should create an Error at the system
// boundary (e.g. when using a database client or reading a file) and
// intermediate layers should not wrap in another Error except to add
// additional [ErrorKind] information. That is to say, use [fmt.Errorf] with a
// "%w" verb in preference to creating a containing Error.
type Error struct {
	Inner   error
	Kind    ErrorKind
	Message string
	Op      string
}

// Assert this implements all the cool features.
var (
	_ error                       = (*Error)(nil)
	_ interface{ Is(error) bool } = (*Error)(nil)
	_ interface{ Unwrap() error } = (*Error)(nil)
)

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	b.WriteString("[")
	switch e.Kind {
	case ErrNotFound, ErrInvalid, ErrConflict, ErrUnavailable, ErrTimeout, ErrCorrupt, ErrTransient:
		b.WriteString(string(e.Kind))
	default:
		b.WriteString("???")
	}
	b.WriteString("]: ")
	if e.Message != "" {
		b.WriteString(e.Message)
	}
	if e.Message != "" && e.Inner != nil {
		b.WriteString(": ")
	}
	if e.Op == "" && e.Message == "" {
		b.Reset()
	}
	if e.Inner != nil {
		b.WriteString(e.Inner.Error())
	}
	return b.String()
}

// Is enables [errors.Is].
//
// It compares the error kind. Callers should compare against a declared
// [ErrorKind] over a specific error.
func (e *Error) Is(kind error) bool {
	return errors.Is(e.Kind, kind)
}

// Unwrap enables [errors.Unwrap].
func (e *Error) Unwrap() error {
	return e.Inner
}

// ErrorKind represents the fixed, small set of error categories surfaced to
// callers of the dispatcher, registry, and storage engine.
type ErrorKind string

// Defined error kinds. Propagation policy: plugin and semantic-backend
// failures never surface these outward (they're recovered locally); storage
// ErrUnavailable/ErrCorrupt are always surfaced; ErrTimeout on a whole query
// is recovered into a partial result rather than an error.
var (
	// ErrNotFound marks a registry, file, or symbol lookup that found
	// nothing.
	ErrNotFound = ErrorKind("not_found")
	// ErrInvalid marks malformed input: a path outside a registered
	// repository, a bad configuration value, and the like.
	ErrInvalid = ErrorKind("invalid")
	// ErrConflict marks a registry collision (duplicate working-tree path)
	// or a concurrent writer contending for the same resource.
	ErrConflict = ErrorKind("conflict")
	// ErrUnavailable marks a storage engine that isn't open, or a semantic
	// back end that's unreachable.
	ErrUnavailable = ErrorKind("unavailable")
	// ErrTimeout marks a deadline exceeded on a whole query or on a
	// sub-operation such as plugin construction.
	ErrTimeout = ErrorKind("timeout")
	// ErrCorrupt marks a schema or registry integrity failure.
	ErrCorrupt = ErrorKind("corrupt")
	// ErrTransient marks a recoverable I/O error that is safe to retry.
	ErrTransient = ErrorKind("transient")
)

// Error implements error.
func (e ErrorKind) Error() string {
	return string(e)
}

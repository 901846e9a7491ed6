package oms

import (
	"fmt"
	"strings"
)

// ErrorCode classifies engine failures so callers can branch without string
// matching.
type ErrorCode int

const (
	Unknown ErrorCode = iota
	// SerializationFailure means a field value could not be encoded to bytes.
	SerializationFailure
	// ValidationFailure means a value could not be converted to a field's
	// declared type before encoding.
	ValidationFailure
	// StoreFailure means the external store failed during a lazy load or a
	// commit write-back. Timeouts surface under this code as well.
	StoreFailure
	// SessionClosed means an operation was attempted on a session that has
	// already been cleaned up.
	SessionClosed
)

// Error is the engine's custom error carrying a classification code and the
// wrapped cause.
type Error struct {
	Code ErrorCode
	Err  error
}

func (e Error) Error() string {
	return fmt.Sprintf("error %d: %v", e.Code, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// SerializationError reports an encode failure on a field write. It carries
// enough detail to identify exactly which field failed and what was handed in.
type SerializationError struct {
	// Field is the declared field name.
	Field string
	// Index is the field's index in the class definition.
	Index int
	// DeclaredType is the field's declared semantic type.
	DeclaredType string
	// ActualType is the Go type of the runtime value that failed to encode.
	ActualType string
	Err        error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("cannot serialize field %q (index %d) of type %s from %s: %v",
		e.Field, e.Index, e.DeclaredType, e.ActualType, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// ValidationError reports a type-conversion failure during value assignment,
// before any encoding takes place.
type ValidationError struct {
	Field        string
	DeclaredType string
	Value        any
	Err          error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cannot convert %T to %s for field %q: %v",
		e.Value, e.DeclaredType, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ObjectCommitFailure is one failed per-object write-back inside a commit.
type ObjectCommitFailure struct {
	ID  Identity
	Err error
}

func (f ObjectCommitFailure) Error() string {
	return fmt.Sprintf("%v: %v", f.ID, f.Err)
}

func (f ObjectCommitFailure) Unwrap() error {
	return f.Err
}

// CommitError aggregates per-object failures of one commit call. Objects
// written before a failure are not rolled back; commit is best-effort,
// at-least-once per object.
type CommitError struct {
	Failures []ObjectCommitFailure
}

func (e *CommitError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "commit failed for %d object(s): ", len(e.Failures))
	for i, f := range e.Failures {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(f.Error())
	}
	return sb.String()
}

func (e *CommitError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i := range e.Failures {
		errs[i] = e.Failures[i]
	}
	return errs
}

// Package errs provides the unified error type used across all of dyntable.
//
// Every subsystem (database drivers, catalog, schema registry, row engine,
// filestore, …) wraps its native errors into *errs.Error before returning
// them to callers. Callers use the Is* predicates to handle errors without
// importing driver-specific packages, and Code to surface a stable
// machine-readable identifier to API layers.
//
// Usage:
//
//	// In a driver — wrap native errors:
//	return errs.Wrap(errs.ErrKindTimeout, "query timed out", pgErr)
//
//	// In the engine — attach a stable code:
//	return errs.Conflict("datatable.already.registered",
//	    fmt.Sprintf("datatable %q is already registered", name))
//
//	// In a handler — check error kind:
//	if errs.IsNotFound(err) {
//	    http.Error(w, "not found", http.StatusNotFound)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
// All backends (Postgres, MySQL, MinIO, …) and the schema engine map their
// native errors to one of these kinds, giving callers a single consistent API.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows, no table, no object
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL or storage operation error
	ErrKindValidation               // bad input rejected before any SQL ran
	ErrKindConflict                 // duplicate key, invariant-violating change
	ErrKindIntegrity                // database fault not matched to a known pattern
	ErrKindPermissionDenied         // access denied / auth failure
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindValidation:
		return "validation"
	case ErrKindConflict:
		return "conflict"
	case ErrKindIntegrity:
		return "integrity"
	case ErrKindPermissionDenied:
		return "permission_denied"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all dyntable subsystems.
// Drivers and services produce it; callers inspect it via the Is*
// predicates below or via CodeOf for the stable identifier.
type Error struct {
	Kind    ErrKind
	Code    string // stable machine-readable code, e.g. "datatable.not.found"
	Message string
	Param   string // offending parameter or column name, when known
	Cause   error  // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithParam records the offending parameter name and returns the error.
func (e *Error) WithParam(param string) *Error {
	e.Param = param
	return e
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Validation creates a validation error with a stable code. Validation
// errors are raised before any SQL executes.
func Validation(code, msg string) *Error {
	return &Error{Kind: ErrKindValidation, Code: code, Message: msg}
}

// NotFound creates a not-found error with a stable code.
func NotFound(code, msg string) *Error {
	return &Error{Kind: ErrKindNotFound, Code: code, Message: msg}
}

// Conflict creates a conflict error with a stable code.
func Conflict(code, msg string) *Error {
	return &Error{Kind: ErrKindConflict, Code: code, Message: msg}
}

// Integrity wraps an unrecognised database fault. The cause chain is kept
// so the full driver error reaches the logs; callers only see the generic
// code.
func Integrity(msg string, cause error) *Error {
	return &Error{Kind: ErrKindIntegrity, Code: "unknown.data.integrity.issue", Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result
// (no rows, missing table, unknown registry entry, …).
func IsNotFound(err error) bool {
	return kindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return kindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return kindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure
// (SQL execution error, storage I/O error, …).
func IsQueryFailed(err error) bool {
	return kindOf(err) == ErrKindQueryFailed
}

// IsValidation reports whether err was caused by bad input from the caller.
func IsValidation(err error) bool {
	return kindOf(err) == ErrKindValidation
}

// IsConflict reports whether err represents a duplicate or an
// invariant-violating change (409-equivalent).
func IsConflict(err error) bool {
	return kindOf(err) == ErrKindConflict
}

// IsIntegrity reports whether err is an unmatched database fault.
func IsIntegrity(err error) bool {
	return kindOf(err) == ErrKindIntegrity
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return kindOf(err) == ErrKindPermissionDenied
}

// CodeOf extracts the stable code from any error in the chain, or "" when
// the error carries none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// kindOf extracts the ErrKind from any error in the chain.
func kindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

// Package errors provides error handling for the annotation store.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details for user-facing messages
//
// On top of that it defines the store's error taxonomy as sentinel errors.
// Every failure returned by the store wraps exactly one of them, so callers
// branch with errors.Is:
//
//	sel, err := resource.TextSelection(text.Simple(0, 50))
//	if errors.Is(err, errors.ErrRange) {
//	    // offset does not fit the text
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
	FlattenHints  = crdb.FlattenHints
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors of the annotation store.
// Wrap these with the New*Error constructors to add context while preserving the type.
var (
	// ErrNotFound indicates an ID or handle lookup miss
	ErrNotFound = New("not found")

	// ErrDuplicateID indicates a public identifier is already bound to another entity
	ErrDuplicateID = New("duplicate id")

	// ErrRange indicates a cursor or offset outside the text
	ErrRange = New("out of range")

	// ErrAlignment indicates a byte offset that is not on a codepoint boundary
	ErrAlignment = New("not on a codepoint boundary")

	// ErrDanglingReference indicates a selector or filter that refers to a removed entity.
	// Errors built with NewDanglingReferenceError also match ErrNotFound.
	ErrDanglingReference = New("dangling reference")

	// ErrInvalidSelector indicates a structurally malformed selector
	ErrInvalidSelector = New("invalid selector")

	// ErrNotEmbedded indicates a relative offset between selections that do not embed
	ErrNotEmbedded = New("not embedded")

	// ErrValueTypeMismatch indicates a value comparison against an incompatible DataValue
	ErrValueTypeMismatch = New("value type mismatch")

	// ErrInvalidRequest indicates a malformed combination of arguments
	ErrInvalidRequest = New("invalid request")

	// ErrInconsistentIndex indicates a reverse index that disagrees with the arenas
	ErrInconsistentIndex = New("inconsistent index")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
// Dangling references count as not found.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewDuplicateIDError creates a duplicate-id error for the given identifier
func NewDuplicateIDError(kind, id string) error {
	return Wrapf(ErrDuplicateID, "%s %q", kind, id)
}

// NewRangeError creates an out-of-range error with a formatted message
func NewRangeError(format string, args ...interface{}) error {
	return Wrap(ErrRange, Newf(format, args...).Error())
}

// NewAlignmentError reports a byte position that falls inside a multi-byte codepoint
func NewAlignmentError(bytepos int) error {
	return Wrapf(ErrAlignment, "byte %d", bytepos)
}

// NewDanglingReferenceError creates a dangling-reference error that also matches ErrNotFound
func NewDanglingReferenceError(format string, args ...interface{}) error {
	return Mark(Wrap(ErrDanglingReference, Newf(format, args...).Error()), ErrNotFound)
}

// NewInvalidSelectorError creates an invalid-selector error with a formatted message
func NewInvalidSelectorError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidSelector, Newf(format, args...).Error())
}

// NewNotEmbeddedError creates a not-embedded error with a formatted message
func NewNotEmbeddedError(format string, args ...interface{}) error {
	return Wrap(ErrNotEmbedded, Newf(format, args...).Error())
}

// NewValueTypeMismatchError creates a value-type-mismatch error with a formatted message
func NewValueTypeMismatchError(format string, args ...interface{}) error {
	return Wrap(ErrValueTypeMismatch, Newf(format, args...).Error())
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}

package scripts

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of script conversion or introspection error.
type ErrorCode int

const (
	// ErrHashMismatch indicates that a candidate pre-image's hash does not
	// equal the commitment it was resolved against.
	ErrHashMismatch ErrorCode = iota

	// ErrHashedKey indicates that pubkey extraction found a leaf which
	// commits only to the hash of a key. The key itself cannot be
	// recovered from the script alone.
	ErrHashedKey

	// ErrPolicyParse indicates that script bytes could not be parsed as a
	// policy expression.
	ErrPolicyParse

	// ErrUnsupportedGeneration indicates a classification variant for
	// which canonical script generation is not defined, currently the
	// taproot output pattern.
	ErrUnsupportedGeneration

	// ErrMalformedScript indicates an input script or witness whose shape
	// does not admit the requested nested-script extraction, e.g. a P2SH
	// sigScript with no trailing push.
	ErrMalformedScript

	// ErrUnresolvable indicates a classification which does not nest a
	// script, so no lock script can be derived from it, e.g. a null-data
	// output or a bare key-hash commitment.
	ErrUnresolvable

	// ErrMissingPreimage indicates that a nested hash commitment could not
	// be resolved because no pre-image source supplied the committed
	// script.
	ErrMissingPreimage
)

// Map of error codes back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrHashMismatch:          "ErrHashMismatch",
	ErrHashedKey:             "ErrHashedKey",
	ErrPolicyParse:           "ErrPolicyParse",
	ErrUnsupportedGeneration: "ErrUnsupportedGeneration",
	ErrMalformedScript:       "ErrMalformedScript",
	ErrUnresolvable:          "ErrUnresolvable",
	ErrMissingPreimage:       "ErrMissingPreimage",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error provides a single type for errors that can occur during script
// classification, conversion, and introspection. It gives callers a stable
// code to branch on together with a description and, where applicable, the
// underlying cause.
type Error struct {
	ErrorCode   ErrorCode
	Description string
	Err         error
}

// Error satisfies the error interface.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// scriptError creates an Error given a set of arguments.
func scriptError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is an Error with a matching error code.
func IsError(err error, code ErrorCode) bool {
	var e Error
	return errors.As(err, &e) && e.ErrorCode == code
}

// HashedKeyError carries the exact hash of the key that blocked pubkey
// extraction. It is the cause of an Error with code ErrHashedKey.
type HashedKeyError struct {
	KeyHash []byte
}

// Error satisfies the error interface.
func (e *HashedKeyError) Error() string {
	return fmt.Sprintf("script commits to the hash %x of an unknown "+
		"public key", e.KeyHash)
}

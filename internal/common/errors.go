// Package common defines the error taxonomy and shared helpers used across
// sheetbook components. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable marks transport or permission failures against the
	// backing store. Always retryable: a write that produced this error must
	// be assumed not to have happened.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound marks entity absence (no such user, no such book).
	ErrNotFound = errors.New("not found")

	// ErrConflict marks invariant violations: duplicate registration,
	// duplicate ownership, double binding.
	ErrConflict = errors.New("conflict")

	// ErrExpired marks a lapsed trial or subscription.
	ErrExpired = errors.New("subscription expired")

	// ErrInvalidCredential marks authentication failures.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrValidation marks malformed input, such as a zero amount.
	ErrValidation = errors.New("validation error")
)

// Operation-specific errors wrap the taxonomy kinds above so that errors.Is
// matches at both granularities.
var (
	// ErrAlreadyExists is returned when registering an email that is taken.
	ErrAlreadyExists = fmt.Errorf("%w: already exists", ErrConflict)

	// ErrOwnerExists is returned when inviting a second Owner onto a book.
	ErrOwnerExists = fmt.Errorf("%w: book already has an owner", ErrConflict)

	// ErrOwnerCannotLeave is returned when an Owner tries to unbind itself
	// without transferring ownership first.
	ErrOwnerCannotLeave = fmt.Errorf("%w: owner cannot leave own book", ErrConflict)

	// ErrResetRequired is returned when a stored credential is the
	// reset-required sentinel: the account exists but must go through the
	// password-reset path before it can log in.
	ErrResetRequired = fmt.Errorf("%w: password reset required", ErrInvalidCredential)

	// ErrUnauthorized is returned when a session holds no binding for the
	// book it tries to operate on.
	ErrUnauthorized = fmt.Errorf("%w: no binding for book", ErrInvalidCredential)
)

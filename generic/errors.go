/*
errors.go - Centralized error types for the record-store engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages return these sentinels directly or wrapped with context.

WIRE CODES:
  Every failure maps to a stable numeric code so independent implementations
  stay interoperable:
    100 Unauthorized
    101 AlreadyExists
    102 NotFound
    103 Expired / invalid coverage window
    104 InvalidStatus (authorization store) / Revoked (consent store)
  Code 104 deliberately carries a different meaning per store; the two
  sentinels are distinct errors that happen to share a code.

USAGE:
  if errors.Is(err, generic.ErrNotFound) { ... }
  code, ok := generic.CodeOf(err) // 102, true

SEE ALSO:
  - guards.go: Temporal validation returning these errors
  - access.go: Returns ErrUnauthorized
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// WIRE CODES - Stable across reimplementations
// =============================================================================

// Code is the numeric failure code surfaced to callers.
type Code int

const (
	CodeUnauthorized  Code = 100
	CodeAlreadyExists Code = 101
	CodeNotFound      Code = 102
	CodeExpired       Code = 103
	CodeInvalidState  Code = 104 // InvalidStatus or Revoked, per store
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnauthorized is returned when the caller is neither the store admin
	// nor (where permitted) the record's owner.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyExists is returned when creating a record whose id is taken.
	// Ids are never reassigned; there is no delete/recreate path.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrNotFound is returned when mutating a record that does not exist.
	// Read-only queries never return it; absence is not an error on reads.
	ErrNotFound = errors.New("record not found")

	// ErrExpired is returned when a temporal precondition fails: a coverage
	// window with start >= end, an expiry at or below the current clock, or
	// an extension that does not move the expiry strictly forward.
	ErrExpired = errors.New("expired or invalid window")

	// ErrInvalidStatus is returned by the authorization store when a status
	// transition targets anything outside {approved, denied, completed}.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrRevoked is returned by the consent store when extending a consent
	// that has already been revoked.
	ErrRevoked = errors.New("consent revoked")

	// ErrStoreRequired is returned when an operation needs a store capability
	// (listing, admin persistence) the configured backend does not provide.
	ErrStoreRequired = errors.New("operation requires extended store interface")
)

// CodeOf maps an error to its wire code. Returns (0, false) for errors
// outside the taxonomy (storage failures and the like).
func CodeOf(err error) (Code, bool) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized, true
	case errors.Is(err, ErrAlreadyExists):
		return CodeAlreadyExists, true
	case errors.Is(err, ErrNotFound):
		return CodeNotFound, true
	case errors.Is(err, ErrExpired):
		return CodeExpired, true
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrRevoked):
		return CodeInvalidState, true
	}
	return 0, false
}

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OpError annotates a sentinel with the store kind, operation, and record id
// that produced it. Unwrap preserves errors.Is matching and CodeOf mapping.
type OpError struct {
	Kind Kind
	Op   string
	ID   RecordID
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s.%s %q: %v", e.Kind, e.Op, e.ID, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsClientError returns true if the error is due to invalid caller input
// rather than an internal failure. All coded errors are client errors.
func IsClientError(err error) bool {
	_, ok := CodeOf(err)
	return ok
}

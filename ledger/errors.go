/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place. Callers match with errors.Is/errors.As;
  the HTTP layer maps them to status codes.

ERROR CATEGORIES:
  ErrValidation          malformed or contradictory input
  ErrNotFound            referenced account/debt/transaction absent or not
                         owned by the caller
  ErrInsufficientBalance debit would drive a balance negative
  ErrConflict            duplicate unique key
  ErrStoreUnavailable    underlying persistence failure (retryable by caller)

PROPAGATION:
  Any error aborts the atomic unit entirely; the engine never retries and
  never leaves balances partially updated.
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed or contradictory input, such as
	// a category/role mismatch or a future transaction datetime.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced account, debt, or transaction
	// does not exist or does not belong to the caller.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientBalance is returned when a debit exceeds the available
	// balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrConflict is returned on a duplicate unique key.
	ErrConflict = errors.New("duplicate key")

	// ErrStoreUnavailable is returned when the underlying store fails or
	// times out. Not retried internally; callers decide.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError carries a user-facing message describing the invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError names the missing resource. Ownership failures surface as
// NotFoundError too, so callers cannot probe for other users' resources.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientBalanceError reports a debit that would make a balance
// negative. Available and Required are formatted to two decimal places for
// user display.
type InsufficientBalanceError struct {
	Account   AccountRef
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance on account %s: available %s, required %s",
		e.Account, e.Available.StringFixed(2), e.Required.StringFixed(2))
}
func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid client input
// rather than a system failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrConflict)
}

// IsNotFound reports whether the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

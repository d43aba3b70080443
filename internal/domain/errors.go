package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, match with errors.Is.
var (
	ErrDuplicateClaim  = errors.New("number listed twice in cart")
	ErrNumberClaimed   = errors.New("number already claimed")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyRefunded = errors.New("sale already refunded")
	ErrConflict        = errors.New("conflict")
	ErrPrecondition    = errors.New("precondition failed")
	ErrInvalidInput    = errors.New("invalid input")
	ErrForbidden       = errors.New("forbidden")
)

// DuplicateClaimError reports a number that appears more than once in one cart.
type DuplicateClaimError struct {
	Number int
}

func (e *DuplicateClaimError) Error() string {
	return fmt.Sprintf("number %d is listed more than once in the cart", e.Number)
}

func (e *DuplicateClaimError) Unwrap() error { return ErrDuplicateClaim }

// NumberClaimedError names the number and the sale that already owns it.
type NumberClaimedError struct {
	Number int
	SaleID int64
}

func (e *NumberClaimedError) Error() string {
	return fmt.Sprintf("number %d already claimed by sale %d", e.Number, e.SaleID)
}

func (e *NumberClaimedError) Unwrap() error { return ErrNumberClaimed }

// ClaimConflictError is returned by the reservation ledger when a claim hits
// an existing row (the unique index fired).
type ClaimConflictError struct {
	Number int
}

func (e *ClaimConflictError) Error() string {
	return fmt.Sprintf("reservation conflict on number %d", e.Number)
}

func (e *ClaimConflictError) Unwrap() error { return ErrConflict }

// InvalidCartError lists every problem found in a checkout request.
type InvalidCartError struct {
	Problems []string
}

func (e *InvalidCartError) Error() string {
	return "invalid cart: " + strings.Join(e.Problems, "; ")
}

func (e *InvalidCartError) Unwrap() error { return ErrInvalidInput }

// NotFound wraps ErrNotFound with the missing entity.
func NotFound(entity string, id any) error {
	return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
}

// IsClientError reports errors caused by the request rather than the server.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicateClaim) ||
		errors.Is(err, ErrNumberClaimed) ||
		errors.Is(err, ErrAlreadyRefunded) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrPrecondition) ||
		errors.Is(err, ErrInvalidInput)
}

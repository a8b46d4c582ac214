package services

import "errors"

// Business-rule failures surfaced to the HTTP layer. Each maps to a
// distinct status code; none is retried.
var (
	// ErrInsufficientFunds means the conditional debit matched no row:
	// the balance did not cover the price. Nothing was changed.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrOutOfStock means no unit of the requested stock remained. When it
	// is returned after a successful debit, the debit has already been
	// compensated and the net balance change is zero.
	ErrOutOfStock = errors.New("out of stock")

	// ErrInvalidSelection means a sized product was requested without a
	// valid size. Rejected before any state changes.
	ErrInvalidSelection = errors.New("invalid size selection")

	// ErrInvalidTransition means the requested order status change is not
	// an edge of the lifecycle state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
)

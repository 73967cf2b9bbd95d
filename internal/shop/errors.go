package shop

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("not authorized")
	ErrEmptyCart       = errors.New("no items in cart")
	ErrAlreadyPaid     = errors.New("order is already paid")
	ErrUpstreamTimeout = errors.New("payment processor timed out")

	// ErrInsufficientStock is the raw conditional-decrement failure; the
	// checkout path wraps it with the product name via InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
)

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

type InsufficientStockError struct {
	ProductName string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s", e.ProductName)
}

type PaymentVerificationError struct {
	Reason string
}

func (e *PaymentVerificationError) Error() string {
	return fmt.Sprintf("payment verification failed: %s", e.Reason)
}

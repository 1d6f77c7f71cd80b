package utils

import "errors"

// Common application errors used across services.
var (
	ErrUnregisteredVariant = errors.New("UNREGISTERED_VARIANT")
	ErrInvalidOrder        = errors.New("INVALID_ORDER")
	ErrOrderSubmission     = errors.New("ORDER_SUBMISSION_FAILED")
	ErrInvalidCartInput    = errors.New("INVALID_CART_INPUT")
	ErrCartLineNotFound    = errors.New("CART_LINE_NOT_FOUND")
	ErrCartConflict        = errors.New("CART_CONFLICT")
)

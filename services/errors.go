package services

import "errors"

// Sentinel errors raised by the service layer. The routes layer translates
// them to HTTP status codes; anything unrecognized becomes an opaque 500.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidState      = errors.New("invalid state")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrInsufficientFunds = errors.New("insufficient bottle caps")
)

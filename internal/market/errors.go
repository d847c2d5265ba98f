package market

import "errors"

var (
	ErrNotFound          = errors.New("market: not found")
	ErrValidation        = errors.New("market: invalid input")
	ErrForbidden         = errors.New("market: not allowed")
	ErrInvalidTransition = errors.New("market: invalid state transition")
	ErrConflict          = errors.New("market: conflict")
	ErrPrecondition      = errors.New("market: precondition not met")
	ErrExternal          = errors.New("market: external service unavailable")
)

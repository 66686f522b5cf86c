package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrValidation     = errors.New("validation failed")
	ErrProvider       = errors.New("provider failure")
	ErrExhausted      = errors.New("all providers exhausted")
	ErrDelivery       = errors.New("webhook delivery failed")
	ErrJobCanceled    = errors.New("job canceled")
	ErrInfrastructure = errors.New("infrastructure unavailable")
)

package auth

import "errors"

var (
	ErrMissingToken = errors.New("authentication token required")
	ErrInvalidToken = errors.New("invalid authentication token")
)

package types

import "errors"

var (
	ErrInvalidEventPayload = errors.New("event payload is not valid JSON")
	ErrMissingEventType    = errors.New("event type is required")
	ErrInvalidUserID       = errors.New("user ID must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidProjectID    = errors.New("project ID must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidRole         = errors.New("role must be owner, contributor, or viewer")
)

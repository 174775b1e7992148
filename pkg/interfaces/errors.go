package interfaces

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrProjectNotFound = errors.New("project not found")
	ErrMemberNotFound  = errors.New("project member not found")
)

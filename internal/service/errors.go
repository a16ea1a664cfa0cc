package service

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrForbidden           = errors.New("forbidden")
	ErrEmailExists         = errors.New("email already exists")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrProjectNotDeletable = errors.New("only draft or cancelled projects can be deleted")
	ErrAgentUnavailable    = errors.New("document agent unavailable")
	ErrAgentRejected       = errors.New("document agent rejected the request")
)

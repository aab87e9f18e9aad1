package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrUnreadableContent  = errors.New("document content is not readable text")
	ErrObjectMissing      = errors.New("object not found in storage")
	ErrRateLimited        = errors.New("too many requests")
)

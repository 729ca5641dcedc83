package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrOperationFailed     = errors.New("storage operation failed")
	ErrReadDatabaseRow     = errors.New("failed to read database row")
	ErrInvalidExecContext  = errors.New("invalid execution context")
	ErrDetectionInProgress = errors.New("detection already running for this user")
	ErrRateLimited         = errors.New("rate limit exceeded")
)

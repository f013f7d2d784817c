package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrJobTerminal        = errors.New("job is in a terminal state")
	ErrEmptyTranscript    = errors.New("no messages to work with")
	ErrNoProvider         = errors.New("no AI provider configured")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")
)

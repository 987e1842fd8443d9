package session

import "errors"

var (
	ErrAlreadyStarted = errors.New("supervisor already started")
	ErrShuttingDown   = errors.New("supervisor is shutting down")
)

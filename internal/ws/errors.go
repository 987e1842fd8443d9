package ws

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed  = errors.New("connection closed")
	ErrWriteTimeout      = errors.New("write timeout")
	ErrInvalidJSON       = errors.New("invalid JSON data")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNotWaiting        = errors.New("connection is not waiting")
)

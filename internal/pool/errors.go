package pool

import "errors"

var (
	ErrNotWaiting = errors.New("handle is not in waiting state")
	ErrDuplicate  = errors.New("handle already enqueued")
)

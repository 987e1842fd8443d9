package pair

import (
	"errors"
	"fmt"

	"pairsona/pkg/interfaces"
)

var (
	ErrSelfPair      = errors.New("cannot pair a handle with itself")
	ErrAlreadyPaired = errors.New("handle is already paired")
)

// StaleError reports a candidate that left Waiting between dequeue and
// pair formation. The matchmaker re-enqueues the survivor and retries.
type StaleError struct {
	Handle interfaces.Handle
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("stale pairing candidate %s", e.Handle.ID())
}

package types

import "errors"

var (
	ErrInvalidPolicy = errors.New("invalid matchmaking policy")
)

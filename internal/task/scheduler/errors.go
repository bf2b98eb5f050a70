package scheduler

import "errors"

var (
	// ErrPoolExhausted is returned by registration when every slot is occupied.
	// The scheduler never retries; the caller decides what to do.
	ErrPoolExhausted = errors.New("task pool exhausted")

	ErrInvalidDelay = errors.New("invalid delay")
	ErrNilCallback  = errors.New("nil callback")
)

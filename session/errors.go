package session

import "errors"

var (
	// ErrInvalidState means the operation was invoked outside its lifecycle
	// window (connect twice, mutate a disconnected session). Programmer
	// error, never retried.
	ErrInvalidState = errors.New("invalid session state")
	// ErrConnectionRejected means the bootstrap call did not yield a usable
	// connection id. The session stays in prepare state for a retry.
	ErrConnectionRejected = errors.New("connection rejected")
	ErrAlreadyAttached    = errors.New("sender already attached")
	ErrNotAttached        = errors.New("no source attached")
	ErrKindMismatch       = errors.New("media kind mismatch")
)

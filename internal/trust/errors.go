package trust

import "errors"

var (
	// ErrService is returned when a request could not produce scores.
	// Callers surface it as a generic failure.
	ErrService = errors.New("trust service failure")

	// ErrInvalidRequest is returned when a request is rejected before any
	// lookup is made.
	ErrInvalidRequest = errors.New("invalid trust request")
)

package eigentrust

import (
	"errors"
	"fmt"
)

var (
	// ErrScoring is wrapped by every failure of a compute call.
	ErrScoring = errors.New("eigentrust compute failed")

	// ErrUnknownIndex is returned when the engine scores an index that is not
	// in the matrix index table.
	ErrUnknownIndex = errors.New("eigentrust returned an unknown index")

	// ErrInvalidBaseURL is returned when the engine URL cannot be used.
	ErrInvalidBaseURL = errors.New("invalid eigentrust base url")

	// ErrEmptyMatrix is returned when Score is called without a matrix.
	ErrEmptyMatrix = errors.New("matrix is empty")
)

// Error describes a failed compute call.
type Error struct {
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Status is the HTTP status text, if any.
	Status string

	// Err is the transport or decode error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s", ErrScoring, e.Status)
	}
	return fmt.Sprintf("%s: %v", ErrScoring, e.Err)
}

// Unwrap allows errors.Is against ErrScoring and the underlying error.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrScoring}
	}
	return []error{ErrScoring, e.Err}
}

package neighbor

import (
	"errors"
	"fmt"
)

// Lookup errors.
// Every one of them is branch-local: the crawler logs it and moves on.
var (
	// ErrUpstream is returned when the API reports an embedded domain error.
	ErrUpstream = errors.New("neighbor api reported an error")

	// ErrLargeAccount is returned when the partial-detail retry of a large
	// account still reports the large-account condition.
	ErrLargeAccount = errors.New("large account retry failed")

	// ErrStatus is returned when the API answers with a non-2xx status.
	ErrStatus = errors.New("neighbor api returned non-success status")

	// ErrInvalidResponse is returned when the response body cannot be decoded.
	ErrInvalidResponse = errors.New("invalid neighbor api response")

	// ErrInvalidProxyAddress is returned when the proxy address is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrInvalidBaseURL is returned when the API base URL cannot be used.
	ErrInvalidBaseURL = errors.New("invalid neighbor api base url")
)

// StatusError carries the HTTP status of a failed lookup.
type StatusError struct {
	// Code is the HTTP status code.
	Code int

	// Status is the HTTP status line text.
	Status string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", ErrStatus, e.Status)
}

// Unwrap allows errors.Is(err, ErrStatus).
func (e *StatusError) Unwrap() error {
	return ErrStatus
}

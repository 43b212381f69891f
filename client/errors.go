package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flowpad/flowpad/graph"
)

// NetworkError reports a transport failure: the request never produced an
// HTTP response (dial error, timeout, reset) or the response body could not
// be read.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// NotFoundError reports a 404 for a flowchart id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("flowchart %s not found", e.ID)
}

// ValidationError reports a 400 for a malformed or inconsistent payload.
type ValidationError struct {
	Message      string
	Problems     []string
	InvalidEdges []graph.Edge
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "validation failed"
	}
	if len(e.Problems) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.Problems, "; "))
	}
	return msg
}

// APIError reports any other non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flowchart API error (status %d): %s", e.StatusCode, e.Body)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

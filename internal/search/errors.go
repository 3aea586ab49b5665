package search

import "fmt"

// RequestError represents a failed call to the search API
type RequestError struct {
	StatusCode int // zero when no response was received
	Message    string
	Cause      error
}

func (e *RequestError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("search request failed: %s: %v", msg, e.Cause)
	}
	return fmt.Sprintf("search request failed: %s", msg)
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

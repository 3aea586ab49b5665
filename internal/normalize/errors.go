// Package normalize rewrites free-text addresses into structured columns with one LLM call per batch.
package normalize

import "fmt"

// MalformedResponseError indicates the model's CSV could not be accepted as a rewrite of the input.
type MalformedResponseError struct {
	Reason string
	Row    int // 1-based data row, zero when the problem is not row-specific
	Cause  error
}

func (e *MalformedResponseError) Error() string {
	msg := e.Reason
	if e.Row > 0 {
		msg = fmt.Sprintf("row %d: %s", e.Row, e.Reason)
	}
	if e.Cause != nil {
		return fmt.Sprintf("malformed normalizer response: %s: %v", msg, e.Cause)
	}
	return fmt.Sprintf("malformed normalizer response: %s", msg)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}

// GenerationError wraps a failed LLM call
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("normalizer generation failed: %v", e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

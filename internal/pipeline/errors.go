package pipeline

import "fmt"

// PersistError means the lookup finished but its result could not be stored for download.
// Process still returns the Result alongside it.
type PersistError struct {
	SessionID string
	Cause     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to store results for session %s: %v", e.SessionID, e.Cause)
}

func (e *PersistError) Unwrap() error {
	return e.Cause
}

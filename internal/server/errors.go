package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/address-lookup/internal/pipeline"
	"github.com/jonathan/address-lookup/internal/session"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validationErr *ErrValidation
		persistErr    *pipeline.PersistError
		storeErr      *session.StoreError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &persistErr):
		// The preview is still rendered; only the download hand-off failed.
		return http.StatusOK
	case errors.As(err, &storeErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

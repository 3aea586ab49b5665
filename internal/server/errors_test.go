package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/address-lookup/internal/pipeline"
	"github.com/jonathan/address-lookup/internal/session"
)

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "companies", Message: "required"}
	assert.Equal(t, "validation error: companies - required", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestHTTPStatus_PersistError(t *testing.T) {
	err := &pipeline.PersistError{SessionID: "s1", Cause: errors.New("boom")}
	assert.Equal(t, http.StatusOK, HTTPStatus(err))
}

func TestHTTPStatus_StoreError(t *testing.T) {
	err := fmt.Errorf("failed to load session results: %w",
		&session.StoreError{Backend: "redis", Op: "get", Cause: errors.New("timeout")})
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(err))
}

func TestHTTPStatus_Default(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("unknown")))
}

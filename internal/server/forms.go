package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const (
	// maxCompaniesLength bounds the companies field in characters.
	maxCompaniesLength = 64 << 10
	// maxFormBytes bounds the whole request body.
	maxFormBytes = 1 << 20
)

// processForm is the body of POST /process.
// Companies is a pointer so a missing field and an empty textarea stay distinguishable.
type processForm struct {
	Companies *string `validate:"required,max=65536"`
}

// parseProcessForm reads and validates the submission form.
func (s *Server) parseProcessForm(w http.ResponseWriter, r *http.Request) (*processForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return nil, &ErrValidation{Field: "form", Message: err.Error()}
	}

	form := &processForm{}
	if values, ok := r.PostForm["companies"]; ok && len(values) > 0 {
		form.Companies = &values[0]
	}

	if err := s.validator.Struct(form); err != nil {
		return nil, validationError(err)
	}
	return form, nil
}

func validationError(err error) *ErrValidation {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		// Return first validation error for simplicity
		ve := validationErrors[0]
		msg := ve.Tag()
		if ve.Tag() == "max" {
			msg = fmt.Sprintf("must be at most %d characters", maxCompaniesLength)
		}
		return &ErrValidation{Field: "companies", Message: msg}
	}
	return &ErrValidation{Field: "companies", Message: "invalid request"}
}

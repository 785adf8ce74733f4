// Package errors provides error handling and HTTP status code mapping.
package errors

import (
	"errors"
	"net/http"

	"github.com/remiblancher/mtls-identity/internal/api/dto"
	"github.com/remiblancher/mtls-identity/internal/ca"
)

// Error codes for API responses.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeNotFound         = "NOT_FOUND"
	CodeInternal         = "INTERNAL_ERROR"
	CodeCertNotFound     = "CERT_NOT_FOUND"
	CodeInvalidCSR       = "INVALID_CSR"
	CodeEmptySubject     = "EMPTY_SUBJECT"
	CodeSerialExhausted  = "SERIAL_EXHAUSTED"
	CodeCANotInitialized = "CA_NOT_INITIALIZED"
)

// MapError maps an internal error to an HTTP status code and APIError.
func MapError(err error) (int, *dto.APIError) {
	if err == nil {
		return http.StatusOK, nil
	}

	switch {
	case errors.Is(err, ca.ErrCertNotFound):
		return http.StatusNotFound, &dto.APIError{
			Code:    CodeCertNotFound,
			Message: err.Error(),
		}
	case errors.Is(err, ca.ErrMalformedCSR):
		return http.StatusBadRequest, &dto.APIError{
			Code:    CodeInvalidCSR,
			Message: err.Error(),
		}
	case errors.Is(err, ca.ErrEmptySubject):
		return http.StatusBadRequest, &dto.APIError{
			Code:    CodeEmptySubject,
			Message: err.Error(),
		}
	case errors.Is(err, ca.ErrSerialExhausted):
		return http.StatusServiceUnavailable, &dto.APIError{
			Code:    CodeSerialExhausted,
			Message: err.Error(),
		}
	case errors.Is(err, ca.ErrAuthorityNotInitialized):
		return http.StatusPreconditionFailed, &dto.APIError{
			Code:    CodeCANotInitialized,
			Message: err.Error(),
		}
	}

	// Issuance rejections carry their reason as a detail.
	var issErr *ca.IssuanceError
	if errors.As(err, &issErr) {
		return http.StatusBadRequest, &dto.APIError{
			Code:    CodeInvalidRequest,
			Message: issErr.Error(),
			Details: map[string]string{"reason": string(issErr.Reason)},
		}
	}

	return http.StatusInternalServerError, &dto.APIError{
		Code:    CodeInternal,
		Message: "An internal error occurred",
	}
}

// NewBadRequest creates a bad request error.
func NewBadRequest(message string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeInvalidRequest,
		Message: message,
	}
}

// NewNotFound creates a not found error.
func NewNotFound(resource, id string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeNotFound,
		Message: resource + " not found",
		Details: map[string]string{"id": id},
	}
}

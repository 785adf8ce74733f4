package ca

import (
	"errors"
	"fmt"
)

// IssuanceReason classifies why an issuance request was rejected.
type IssuanceReason string

const (
	// ReasonMalformedCSR indicates the CSR could not be parsed or its
	// self-signature did not verify.
	ReasonMalformedCSR IssuanceReason = "malformed_csr"

	// ReasonEmptySubject indicates the CSR carried no common name.
	ReasonEmptySubject IssuanceReason = "empty_subject"

	// ReasonSerialExhausted indicates the serial counter space is spent.
	ReasonSerialExhausted IssuanceReason = "serial_exhausted"
)

// IssuanceError rejects a single issuance request; the service stays up.
// It supports errors.Is() and errors.As() through the error chain.
type IssuanceError struct {
	Reason IssuanceReason
	Err    error
}

// Error implements the error interface.
func (e *IssuanceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("issuance rejected (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("issuance rejected (%s)", e.Reason)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *IssuanceError) Unwrap() error { return e.Err }

// ConfigurationError indicates CA material is missing or invalid.
// It is fatal to service startup.
type ConfigurationError struct {
	Err error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("ca configuration: %v", e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// Sentinel errors for CA operations.
var (
	// ErrAuthorityNotInitialized indicates no CA material exists yet.
	ErrAuthorityNotInitialized = errors.New("certificate authority not initialized")

	// ErrSignerNotLoaded indicates the CA private key has not been loaded.
	ErrSignerNotLoaded = errors.New("CA signer not loaded")

	// ErrCertNotFound indicates the requested certificate was not found.
	ErrCertNotFound = errors.New("certificate not found")

	// ErrMalformedCSR indicates the certificate signing request is invalid.
	ErrMalformedCSR = errors.New("malformed CSR")

	// ErrEmptySubject indicates the CSR requested no common name.
	ErrEmptySubject = errors.New("empty subject common name")

	// ErrSerialExhausted indicates the serial number space is exhausted.
	ErrSerialExhausted = errors.New("serial number space exhausted")
)

// newIssuanceError wraps a sentinel in an IssuanceError with its reason.
func newIssuanceError(reason IssuanceReason, err error) *IssuanceError {
	return &IssuanceError{Reason: reason, Err: err}
}

package enroll

import (
	"errors"
	"fmt"
)

// Failure reason strings surfaced through the Failed state.
const (
	ReasonKeyGeneration    = "key generation failed"
	ReasonCSRGeneration    = "CSR generation failed"
	ReasonSubmission       = "submission failed"
	ReasonCertificateParse = "certificate parse failed"
	ReasonIdentityInstall  = "certificate import failed"
)

// Error is an enrollment failure. Reason matches the value reported by
// the Failed state; Err carries the underlying cause.
type Error struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("enrollment failed: %s: %v", e.Reason, e.Err)
	}
	return "enrollment failed: " + e.Reason
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error { return e.Err }

// RejectionError is a rejection decided by the issuing side; its reason
// is reported verbatim.
type RejectionError struct {
	Reason string
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	return "enrollment rejected by server: " + e.Reason
}

// Sentinel errors for the enrollment flow.
var (
	// ErrEnrollmentInFlight indicates an enrollment is already active;
	// the non-idle state acts as the per-device mutex.
	ErrEnrollmentInFlight = errors.New("enrollment already in progress")

	// ErrNotTerminal indicates Reset was called outside a terminal state.
	ErrNotTerminal = errors.New("enrollment not in a terminal state")

	// ErrMalformedResponse indicates the server response could not be
	// decoded into a certificate.
	ErrMalformedResponse = errors.New("malformed enrollment response")
)

// Package enroll drives the acquisition of a new mTLS identity:
// key generation, CSR construction, submission to the certificate
// authority, and installation of the resulting identity.
package enroll

// State is a step in the enrollment flow. Transitions are forward-only;
// Completed and Failed are terminal until Reset.
type State int

const (
	// StateIdle means no enrollment is in flight.
	StateIdle State = iota

	// StateStarting means an enrollment has been accepted.
	StateStarting

	// StateGeneratingKeys means a keypair is being generated in the
	// secure key store.
	StateGeneratingKeys

	// StateGeneratingCSR means the signing request is being built.
	StateGeneratingCSR

	// StateSubmittingCSR means the request is in flight to the CA.
	StateSubmittingCSR

	// StateReceivingCertificate means the issued certificate is being
	// bound to the held key reference and installed.
	StateReceivingCertificate

	// StateCompleted is the successful terminal state.
	StateCompleted

	// StateFailed is the failed terminal state; the failure reason is
	// reported alongside.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateGeneratingKeys:
		return "generating_keys"
	case StateGeneratingCSR:
		return "generating_csr"
	case StateSubmittingCSR:
		return "submitting_csr"
	case StateReceivingCertificate:
		return "receiving_certificate"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends the flow.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

package dto

// EnrollRequest represents a device enrollment request.
type EnrollRequest struct {
	// CSR is the base64-encoded DER certificate signing request.
	CSR string `json:"csr"`

	// DeviceID identifies the enrolling device.
	DeviceID string `json:"deviceId"`

	// CommonName is the requested certificate subject CN.
	CommonName string `json:"commonName"`
}

// EnrollResponse represents the result of an enrollment.
type EnrollResponse struct {
	// Success indicates whether a certificate was issued.
	Success bool `json:"success"`

	// Certificate is the base64-encoded DER certificate, when issued.
	Certificate string `json:"certificate,omitempty"`

	// DeviceID echoes the request's device identifier.
	DeviceID string `json:"deviceId,omitempty"`

	// CommonName echoes the issued certificate's subject CN.
	CommonName string `json:"commonName,omitempty"`

	// ValidFor is the certificate's validity in days.
	ValidFor int `json:"validFor,omitempty"`

	// Error is a short failure reason, when not successful.
	Error string `json:"error,omitempty"`

	// Details carries additional failure context.
	Details string `json:"details,omitempty"`
}

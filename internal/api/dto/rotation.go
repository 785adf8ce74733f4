package dto

// RotationStatusResponse reports the issuing side's rotation judgment
// for a certificate.
type RotationStatusResponse struct {
	// CertName is the certificate's subject common name.
	CertName string `json:"certName"`

	// ValidTo is the expiry time in RFC 3339 format.
	ValidTo string `json:"validTo"`

	// DaysUntilExpiry is non-negative; 0 when already expired.
	DaysUntilExpiry int `json:"daysUntilExpiry"`

	// RotationRequired means the certificate must be rotated now.
	RotationRequired bool `json:"rotationRequired"`

	// RotationRecommended means rotation should be scheduled.
	RotationRecommended bool `json:"rotationRecommended"`
}

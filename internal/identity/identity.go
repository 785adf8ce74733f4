// Package identity models installed mTLS identities: a certificate paired
// with a reference to a private key held in a secure key store.
package identity

import (
	"crypto/x509"
	"time"

	"github.com/remiblancher/mtls-identity/internal/keystore"
	"github.com/remiblancher/mtls-identity/internal/x509util"
)

// Source tags how an identity came to exist on the device.
type Source string

const (
	// SourceProvisioned marks identities installed out of band.
	SourceProvisioned Source = "provisioned"

	// SourceEnrolled marks identities acquired through enrollment.
	SourceEnrolled Source = "enrolled"
)

// Identity pairs a certificate with a key-store reference.
// The private key itself stays inside the key store.
type Identity struct {
	// Certificate is the issued leaf certificate.
	Certificate *x509.Certificate

	// KeyRef references the private key in the secure key store.
	KeyRef keystore.KeyRef

	// Label is the storage label the identity is persisted under.
	Label string

	// Source records how the identity was created.
	Source Source
}

// Fingerprint returns the SHA-256 fingerprint of the certificate.
func (id *Identity) Fingerprint() string {
	return x509util.FingerprintHex(id.Certificate)
}

// ValidAt reports whether the certificate's validity window covers t.
func (id *Identity) ValidAt(t time.Time) bool {
	return !t.Before(id.Certificate.NotBefore) && !t.After(id.Certificate.NotAfter)
}

// Expired reports whether the certificate has expired.
func (id *Identity) Expired(now time.Time) bool {
	return now.After(id.Certificate.NotAfter)
}

// Label derivation for device enrollments.
const labelPrefix = "identity-"

// LabelForDevice derives the storage label for a device identifier.
func LabelForDevice(deviceID string) string {
	return labelPrefix + deviceID
}

// Package x509util provides X.509 helper functions shared by the CA,
// the enrollment flow, and the trust validator.
package x509util

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"encoding/pem"
	"fmt"
)

// Fingerprint computes the SHA-256 fingerprint of a certificate's
// encoded bytes.
func Fingerprint(cert *x509.Certificate) [sha256.Size]byte {
	return sha256.Sum256(cert.Raw)
}

// FingerprintHex returns the SHA-256 fingerprint as a lowercase hex string.
func FingerprintHex(cert *x509.Certificate) string {
	sum := Fingerprint(cert)
	return hex.EncodeToString(sum[:])
}

// SubjectKeyID computes the subject key identifier for a public key
// (SHA-256 of the SubjectPublicKeyInfo, truncated to 160 bits per RFC 7093).
func SubjectKeyID(pub crypto.PublicKey) ([]byte, error) {
	spki, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	sum := sha256.Sum256(spki)
	return sum[:20], nil
}

// EncodeCertPEM encodes a certificate as a PEM block.
func EncodeCertPEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert.Raw,
	})
}

// ParseCertPEM parses the first CERTIFICATE block from PEM data.
func ParseCertPEM(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("no certificate found in PEM data")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return cert, nil
}

// ParseCertChainPEM parses all CERTIFICATE blocks from PEM data, in order.
func ParseCertChainPEM(data []byte) ([]*x509.Certificate, error) {
	var chain []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
		chain = append(chain, cert)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no certificate found in PEM data")
	}
	return chain, nil
}

// SubjectString renders a subject in a compact single-line form.
func SubjectString(name pkix.Name) string {
	return name.String()
}

// oidExtensionSubjectAltName identifies the SAN extension.
var oidExtensionSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}

// HasSAN reports whether the certificate carries a subject alternative
// name extension.
func HasSAN(cert *x509.Certificate) bool {
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(oidExtensionSubjectAltName) {
			return true
		}
	}
	return false
}

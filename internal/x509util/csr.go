package x509util

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
)

// CSRRequest holds the parameters for creating a certificate signing request.
type CSRRequest struct {
	// Subject is the requested certificate subject.
	Subject pkix.Name

	// DNSNames are optional DNS SANs.
	DNSNames []string

	// Signer holds the subject's private key. The CSR binds the
	// corresponding public key; the private key itself never appears
	// in the request.
	Signer crypto.Signer
}

// CreateCSR creates a DER-encoded PKCS#10 certificate signing request.
func CreateCSR(req CSRRequest) ([]byte, error) {
	if req.Signer == nil {
		return nil, fmt.Errorf("signer is required")
	}
	if req.Subject.CommonName == "" {
		return nil, fmt.Errorf("common name is required")
	}

	template := &x509.CertificateRequest{
		Subject:  req.Subject,
		DNSNames: req.DNSNames,
	}

	der, err := x509.CreateCertificateRequest(rand.Reader, template, req.Signer)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSR: %w", err)
	}

	return der, nil
}

// ParseCSR parses a DER-encoded CSR and verifies its self-signature,
// proving possession of the private key.
func ParseCSR(der []byte) (*x509.CertificateRequest, error) {
	csr, err := x509.ParseCertificateRequest(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSR: %w", err)
	}

	if err := csr.CheckSignature(); err != nil {
		return nil, fmt.Errorf("CSR signature verification failed: %w", err)
	}

	return csr, nil
}

// EncodeCSRPEM encodes a DER CSR as a PEM block.
func EncodeCSRPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE REQUEST",
		Bytes: der,
	})
}

// ParseCSRPEM decodes a PEM CSR and verifies its self-signature.
func ParseCSRPEM(data []byte) (*x509.CertificateRequest, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE REQUEST" {
		return nil, fmt.Errorf("no certificate request found in PEM data")
	}
	return ParseCSR(block.Bytes)
}

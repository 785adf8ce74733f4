package ca

import (
	"crypto/rand"
	"crypto/x509"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/remiblancher/mtls-identity/internal/x509util"
)

// Role selects the certificate profile for issuance.
type Role string

const (
	// RoleServer issues a TLS server certificate with DNS SANs covering
	// the server's bound hostnames.
	RoleServer Role = "server"

	// RoleClient issues a TLS client certificate restricted to client
	// authentication.
	RoleClient Role = "client"
)

// IssueRequest holds the parameters for signing a CSR.
type IssueRequest struct {
	// CSR is the DER-encoded PKCS#10 request.
	CSR []byte

	// Role selects the certificate profile.
	Role Role

	// ValidityDays is the leaf validity period. Defaults to 365.
	ValidityDays int

	// Hostnames are the DNS names bound into server certificates.
	// Ignored for client certificates.
	Hostnames []string
}

// IssueCertificate validates the CSR and signs it into a leaf certificate.
// Serial numbers come from a single serialized counter, so concurrent
// issuance never produces duplicates.
func (a *Authority) IssueCertificate(req IssueRequest) (*x509.Certificate, error) {
	if a.signer == nil {
		return nil, ErrSignerNotLoaded
	}

	csr, err := x509util.ParseCSR(req.CSR)
	if err != nil {
		return nil, newIssuanceError(ReasonMalformedCSR, fmt.Errorf("%w: %v", ErrMalformedCSR, err))
	}

	if csr.Subject.CommonName == "" {
		return nil, newIssuanceError(ReasonEmptySubject, ErrEmptySubject)
	}

	serialBytes, err := a.store.NextSerial()
	if err != nil {
		if errors.Is(err, ErrSerialExhausted) {
			return nil, newIssuanceError(ReasonSerialExhausted, err)
		}
		return nil, fmt.Errorf("failed to get serial number: %w", err)
	}

	validityDays := req.ValidityDays
	if validityDays <= 0 {
		validityDays = 365
	}

	skid, err := x509util.SubjectKeyID(csr.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to compute subject key ID: %w", err)
	}

	now := time.Now().UTC()
	template := &x509.Certificate{
		SerialNumber:          new(big.Int).SetBytes(serialBytes),
		Subject:               csr.Subject,
		NotBefore:             now,
		NotAfter:              now.AddDate(0, 0, validityDays),
		BasicConstraintsValid: true,
		IsCA:                  false,
		SubjectKeyId:          skid,
		AuthorityKeyId:        a.cert.SubjectKeyId,
		SignatureAlgorithm:    x509.ECDSAWithSHA256,
	}

	switch req.Role {
	case RoleServer:
		template.KeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
		template.DNSNames = req.Hostnames
		if len(template.DNSNames) == 0 {
			template.DNSNames = csr.DNSNames
		}
	case RoleClient:
		template.KeyUsage = x509.KeyUsageDigitalSignature
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
	default:
		return nil, newIssuanceError(ReasonMalformedCSR, fmt.Errorf("unknown role %q", req.Role))
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, a.cert, csr.PublicKey, a.signer)
	if err != nil {
		return nil, fmt.Errorf("failed to sign certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	if err := a.store.SaveCert(cert); err != nil {
		return nil, fmt.Errorf("failed to save certificate: %w", err)
	}

	log.Printf("certificate issued: CN=%s role=%s serial=0x%X expires=%s",
		cert.Subject.CommonName, req.Role, cert.SerialNumber.Bytes(), cert.NotAfter.Format(time.RFC3339))

	return cert, nil
}

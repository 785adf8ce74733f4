package trust

import (
	"crypto/x509"
	"time"

	"github.com/remiblancher/mtls-identity/internal/x509util"
)

// ClientClaims are application-usable identity claims projected from a
// verified peer certificate.
type ClientClaims struct {
	CommonName         string
	Organization       string
	OrganizationalUnit string
	Country            string
	State              string
	Locality           string

	ValidFrom time.Time
	ValidTo   time.Time

	IssuerCommonName         string
	IssuerOrganization       string
	IssuerOrganizationalUnit string

	FingerprintSHA256 string
	SerialNumber      string
}

// ExtractClaims projects a peer certificate into claims. A nil certificate
// (no client certificate presented) yields nil: unauthenticated, not an
// error. The projection performs no cryptographic verification; it trusts
// that the TLS session already validated the certificate.
func ExtractClaims(cert *x509.Certificate) *ClientClaims {
	if cert == nil {
		return nil
	}

	return &ClientClaims{
		CommonName:         cert.Subject.CommonName,
		Organization:       first(cert.Subject.Organization),
		OrganizationalUnit: first(cert.Subject.OrganizationalUnit),
		Country:            first(cert.Subject.Country),
		State:              first(cert.Subject.Province),
		Locality:           first(cert.Subject.Locality),

		ValidFrom: cert.NotBefore,
		ValidTo:   cert.NotAfter,

		IssuerCommonName:         cert.Issuer.CommonName,
		IssuerOrganization:       first(cert.Issuer.Organization),
		IssuerOrganizationalUnit: first(cert.Issuer.OrganizationalUnit),

		FingerprintSHA256: x509util.FingerprintHex(cert),
		SerialNumber:      cert.SerialNumber.String(),
	}
}

// first returns the first element of a DN attribute list, or "".
func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

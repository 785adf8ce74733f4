package trust

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"testing"
	"time"
)

// testCA is an in-test certificate authority.
type testCA struct {
	key  *ecdsa.PrivateKey
	cert *x509.Certificate
}

func newTestCA(t *testing.T, commonName string) *testCA {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate() error = %v", err)
	}
	return &testCA{key: key, cert: cert}
}

// issueLeaf signs a client leaf certificate for the given common name.
func (ca *testCA) issueLeaf(t *testing.T, commonName string) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(24 * time.Hour),
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.cert, &key.PublicKey, ca.key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate() error = %v", err)
	}
	return cert
}

func kindOf(t *testing.T, err error) ErrorKind {
	t.Helper()
	var trustErr *Error
	if !errors.As(err, &trustErr) {
		t.Fatalf("error type = %T, want *trust.Error (%v)", err, err)
	}
	return trustErr.Kind
}

func TestF_Verify_PinnedTerminalAccepted(t *testing.T) {
	ca := newTestCA(t, "Fleet Root CA")
	leaf := ca.issueLeaf(t, "client-1")
	v := NewValidator(ca.cert)

	if err := v.Verify([]*x509.Certificate{leaf, ca.cert}, ""); err != nil {
		t.Errorf("Verify() with pinned terminal error = %v", err)
	}
}

func TestF_Verify_LeafOnlyChain(t *testing.T) {
	ca := newTestCA(t, "Fleet Root CA")
	leaf := ca.issueLeaf(t, "client-1")
	v := NewValidator(ca.cert)

	// A bare leaf still validates through chain-path evaluation.
	if err := v.Verify([]*x509.Certificate{leaf}, "client-1"); err != nil {
		t.Errorf("Verify() leaf-only error = %v", err)
	}
}

func TestF_Verify_DifferentCASameSubject(t *testing.T) {
	pinned := newTestCA(t, "Fleet Root CA")
	impostor := newTestCA(t, "Fleet Root CA")
	leaf := impostor.issueLeaf(t, "client-1")

	v := NewValidator(pinned.cert)
	err := v.Verify([]*x509.Certificate{leaf, impostor.cert}, "")
	if err == nil {
		t.Fatal("Verify() must reject a chain from an impostor CA")
	}
	if kind := kindOf(t, err); kind != KindCAMismatch {
		t.Errorf("Kind = %v, want %v", kind, KindCAMismatch)
	}
}

func TestF_Verify_UntrustedLeafOnly(t *testing.T) {
	pinned := newTestCA(t, "Fleet Root CA")
	other := newTestCA(t, "Other CA")
	leaf := other.issueLeaf(t, "client-1")

	v := NewValidator(pinned.cert)
	err := v.Verify([]*x509.Certificate{leaf}, "")
	if err == nil {
		t.Fatal("Verify() must reject an untrusted leaf")
	}
	// No terminal was pin-compared, so this is a chain evaluation failure.
	if kind := kindOf(t, err); kind != KindChainEvaluationFailed {
		t.Errorf("Kind = %v, want %v", kind, KindChainEvaluationFailed)
	}
}

func TestU_Verify_EmptyChain(t *testing.T) {
	ca := newTestCA(t, "Fleet Root CA")
	v := NewValidator(ca.cert)

	err := v.Verify(nil, "")
	if kind := kindOf(t, err); kind != KindChainEvaluationFailed {
		t.Errorf("Kind = %v, want %v", kind, KindChainEvaluationFailed)
	}
}

func TestF_Verify_ExpiredLeaf(t *testing.T) {
	ca := newTestCA(t, "Fleet Root CA")
	leaf := ca.issueLeaf(t, "client-1")

	v := NewValidator(ca.cert)
	// Evaluate far past the leaf's validity window.
	v.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	if err := v.Verify([]*x509.Certificate{leaf}, ""); err == nil {
		t.Error("Verify() must reject an expired leaf")
	}
}

func TestF_Verify_PeerNameMismatch(t *testing.T) {
	ca := newTestCA(t, "Fleet Root CA")
	leaf := ca.issueLeaf(t, "client-1")
	v := NewValidator(ca.cert)

	if err := v.Verify([]*x509.Certificate{leaf}, "someone-else"); err == nil {
		t.Error("Verify() must reject a peer name mismatch")
	}
}

func TestU_VerifyPeerCertificate_NoCert(t *testing.T) {
	ca := newTestCA(t, "Fleet Root CA")
	v := NewValidator(ca.cert)

	// No client certificate presented: the handshake layer allows it,
	// route middleware enforces presence.
	if err := v.VerifyPeerCertificate("")(nil, nil); err != nil {
		t.Errorf("VerifyPeerCertificate() with no certs error = %v", err)
	}
}

func TestU_VerifyPeerCertificate_RawChain(t *testing.T) {
	ca := newTestCA(t, "Fleet Root CA")
	leaf := ca.issueLeaf(t, "client-1")
	v := NewValidator(ca.cert)

	verify := v.VerifyPeerCertificate("")
	if err := verify([][]byte{leaf.Raw, ca.cert.Raw}, nil); err != nil {
		t.Errorf("VerifyPeerCertificate() error = %v", err)
	}
	if err := verify([][]byte{[]byte("garbage")}, nil); err == nil {
		t.Error("VerifyPeerCertificate() must reject unparseable certificates")
	}
}

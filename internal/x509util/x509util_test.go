package x509util

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"
)

func newSelfSigned(t *testing.T) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"test.example.com"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate() error = %v", err)
	}
	return cert
}

func TestU_FingerprintHex(t *testing.T) {
	cert := newSelfSigned(t)

	fp := FingerprintHex(cert)
	if len(fp) != 64 {
		t.Errorf("FingerprintHex() length = %d, want 64", len(fp))
	}
	if fp != FingerprintHex(cert) {
		t.Error("FingerprintHex() must be deterministic")
	}
}

func TestF_CertPEM_RoundTrip(t *testing.T) {
	cert := newSelfSigned(t)

	parsed, err := ParseCertPEM(EncodeCertPEM(cert))
	if err != nil {
		t.Fatalf("ParseCertPEM() error = %v", err)
	}
	if FingerprintHex(parsed) != FingerprintHex(cert) {
		t.Error("certificate changed across PEM round trip")
	}
}

func TestU_ParseCertPEM_Garbage(t *testing.T) {
	if _, err := ParseCertPEM([]byte("not pem")); err == nil {
		t.Error("ParseCertPEM() must reject non-PEM input")
	}
}

func TestF_CertChainPEM(t *testing.T) {
	first := newSelfSigned(t)
	second := newSelfSigned(t)

	data := append(EncodeCertPEM(first), EncodeCertPEM(second)...)
	chain, err := ParseCertChainPEM(data)
	if err != nil {
		t.Fatalf("ParseCertChainPEM() error = %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("ParseCertChainPEM() returned %d certs, want 2", len(chain))
	}
}

func TestF_CSR_RoundTrip(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	der, err := CreateCSR(CSRRequest{
		Subject:  pkix.Name{CommonName: "device-01"},
		DNSNames: []string{"device-01.local"},
		Signer:   key,
	})
	if err != nil {
		t.Fatalf("CreateCSR() error = %v", err)
	}

	csr, err := ParseCSR(der)
	if err != nil {
		t.Fatalf("ParseCSR() error = %v", err)
	}
	if csr.Subject.CommonName != "device-01" {
		t.Errorf("CommonName = %v, want device-01", csr.Subject.CommonName)
	}
	if len(csr.DNSNames) != 1 || csr.DNSNames[0] != "device-01.local" {
		t.Errorf("DNSNames = %v, want [device-01.local]", csr.DNSNames)
	}
}

func TestU_CreateCSR_RequiresCommonName(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	if _, err := CreateCSR(CSRRequest{Signer: key}); err == nil {
		t.Error("CreateCSR() without a common name must fail")
	}
}

func TestU_ParseCSR_RejectsTampered(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	der, err := CreateCSR(CSRRequest{Subject: pkix.Name{CommonName: "device-01"}, Signer: key})
	if err != nil {
		t.Fatalf("CreateCSR() error = %v", err)
	}

	// Corrupt a byte inside the signed region.
	tampered := make([]byte, len(der))
	copy(tampered, der)
	tampered[len(tampered)/2] ^= 0xFF

	if _, err := ParseCSR(tampered); err == nil {
		t.Error("ParseCSR() must reject a tampered CSR")
	}
}

func TestU_SubjectKeyID_Stable(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	first, err := SubjectKeyID(key.Public())
	if err != nil {
		t.Fatalf("SubjectKeyID() error = %v", err)
	}
	second, err := SubjectKeyID(key.Public())
	if err != nil {
		t.Fatalf("SubjectKeyID() error = %v", err)
	}
	if string(first) != string(second) {
		t.Error("SubjectKeyID() must be deterministic")
	}
	if len(first) != 20 {
		t.Errorf("SubjectKeyID() length = %d, want 20", len(first))
	}
}

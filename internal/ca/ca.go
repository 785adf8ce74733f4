package ca

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/remiblancher/mtls-identity/internal/keystore"
	"github.com/remiblancher/mtls-identity/internal/x509util"
)

const caKeyPEMType = "MTLSID ENCRYPTED KEY"

// Authority is the Certificate Authority Service. It owns the CA keypair
// and signs certificate signing requests into leaf certificates.
type Authority struct {
	store  *Store
	cert   *x509.Certificate
	signer *ecdsa.PrivateKey
}

// Config holds CA initialization options.
type Config struct {
	// CommonName is the CA's common name.
	CommonName string

	// Organization is the CA's organization.
	Organization string

	// Country is the CA's country code.
	Country string

	// ValidityYears is the CA certificate validity in years.
	// Defaults to 10.
	ValidityYears int

	// Passphrase encrypts the CA private key at rest.
	Passphrase string
}

// Load opens an existing CA from the store without its signer.
func Load(store *Store) (*Authority, error) {
	cert, err := store.LoadCACert()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigurationError{Err: ErrAuthorityNotInitialized}
		}
		return nil, &ConfigurationError{Err: fmt.Errorf("failed to load CA certificate: %w", err)}
	}

	return &Authority{store: store, cert: cert}, nil
}

// InitializeAuthority creates or reopens a CA. Idempotent: if a valid,
// non-expired CA certificate already exists in the store it is loaded
// as-is; otherwise a fresh keypair is generated and self-signed.
func InitializeAuthority(store *Store, cfg Config) (*Authority, error) {
	if store.Exists() {
		auth, err := Load(store)
		if err != nil {
			return nil, err
		}
		if time.Now().Before(auth.cert.NotAfter) {
			if err := auth.LoadSigner(cfg.Passphrase); err != nil {
				return nil, err
			}
			return auth, nil
		}
		log.Printf("CA certificate expired %s, regenerating", auth.cert.NotAfter.Format(time.RFC3339))
	}

	if err := store.Init(); err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("failed to initialize store: %w", err)}
	}

	signer, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("failed to generate CA key: %w", err)}
	}

	if err := saveCAKey(store.CAKeyPath(), signer, cfg.Passphrase); err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	validityYears := cfg.ValidityYears
	if validityYears == 0 {
		validityYears = 10
	}

	serialBytes, err := store.NextSerial()
	if err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("failed to get serial number: %w", err)}
	}

	skid, err := x509util.SubjectKeyID(signer.Public())
	if err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("failed to compute subject key ID: %w", err)}
	}

	now := time.Now().UTC()
	template := &x509.Certificate{
		SerialNumber: new(big.Int).SetBytes(serialBytes),
		Subject: pkix.Name{
			CommonName:   cfg.CommonName,
			Organization: []string{cfg.Organization},
			Country:      []string{cfg.Country},
		},
		NotBefore:             now,
		NotAfter:              now.AddDate(validityYears, 0, 0),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            0,
		MaxPathLenZero:        true,
		SubjectKeyId:          skid,
		SignatureAlgorithm:    x509.ECDSAWithSHA256,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, signer.Public(), signer)
	if err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("failed to create CA certificate: %w", err)}
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("failed to parse CA certificate: %w", err)}
	}

	if err := store.SaveCACert(cert); err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("failed to save CA certificate: %w", err)}
	}

	log.Printf("CA initialized: %s (serial 0x%X, expires %s)",
		cert.Subject.String(), cert.SerialNumber.Bytes(), cert.NotAfter.Format(time.RFC3339))

	return &Authority{
		store:  store,
		cert:   cert,
		signer: signer,
	}, nil
}

// Certificate returns the CA certificate.
func (a *Authority) Certificate() *x509.Certificate {
	return a.cert
}

// Loaded reports whether both the CA certificate and signer are loaded.
func (a *Authority) Loaded() bool {
	return a.cert != nil && a.signer != nil
}

// Store returns the CA store.
func (a *Authority) Store() *Store {
	return a.store
}

// LoadSigner loads the CA private key from the store.
func (a *Authority) LoadSigner(passphrase string) error {
	data, err := os.ReadFile(a.store.CAKeyPath())
	if err != nil {
		return &ConfigurationError{Err: fmt.Errorf("failed to read CA key: %w", err)}
	}

	der, err := keystore.DecryptFromPEM([]byte(passphrase), data, caKeyPEMType)
	if err != nil {
		return &ConfigurationError{Err: fmt.Errorf("failed to decrypt CA key: %w", err)}
	}

	signer, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return &ConfigurationError{Err: fmt.Errorf("failed to parse CA key: %w", err)}
	}

	a.signer = signer
	return nil
}

// saveCAKey persists the CA private key as an encrypted PEM file.
func saveCAKey(path string, key *ecdsa.PrivateKey, passphrase string) error {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to marshal CA key: %w", err)
	}

	data, err := keystore.EncryptToPEM([]byte(passphrase), der, caKeyPEMType)
	if err != nil {
		return fmt.Errorf("failed to encrypt CA key: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to save CA key: %w", err)
	}
	return nil
}

// Package ca implements the Certificate Authority Service: CA key
// ownership, idempotent initialization, and CSR signing.
package ca

import (
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// RFC 5280 caps serial numbers at 20 octets.
const maxSerialWidth = 20

// Store manages CA material and issued certificates on the filesystem.
// Directory structure:
//
//	{base}/
//	  ├── ca.crt           # CA certificate
//	  ├── private/ca.key   # CA private key (encrypted PEM)
//	  ├── certs/           # Issued certificates, {serial}.crt
//	  ├── index.txt        # Issuance log (OpenSSL-like)
//	  └── serial           # Next serial number
//
// The serial counter is guarded by a mutex: concurrent issuance must
// never produce duplicate serials.
type Store struct {
	serialMu sync.Mutex
	basePath string
}

// NewStore creates a certificate store rooted at basePath.
func NewStore(basePath string) *Store {
	return &Store{basePath: basePath}
}

// Init creates the store directory structure.
func (s *Store) Init() error {
	dirs := []string{
		s.basePath,
		filepath.Join(s.basePath, "certs"),
		filepath.Join(s.basePath, "private"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	serialPath := filepath.Join(s.basePath, "serial")
	if _, err := os.Stat(serialPath); os.IsNotExist(err) {
		if err := os.WriteFile(serialPath, []byte("01\n"), 0644); err != nil {
			return fmt.Errorf("failed to create serial file: %w", err)
		}
	}

	indexPath := filepath.Join(s.basePath, "index.txt")
	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		if err := os.WriteFile(indexPath, []byte(""), 0644); err != nil {
			return fmt.Errorf("failed to create index file: %w", err)
		}
	}

	return nil
}

// CACertPath returns the path to the CA certificate.
func (s *Store) CACertPath() string {
	return filepath.Join(s.basePath, "ca.crt")
}

// CAKeyPath returns the path to the CA private key.
func (s *Store) CAKeyPath() string {
	return filepath.Join(s.basePath, "private", "ca.key")
}

// CertPath returns the path for an issued certificate.
func (s *Store) CertPath(serial []byte) string {
	return filepath.Join(s.basePath, "certs", hex.EncodeToString(serial)+".crt")
}

// Exists reports whether CA material is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.CACertPath())
	return err == nil
}

// BasePath returns the base path of the store.
func (s *Store) BasePath() string {
	return s.basePath
}

// SaveCACert saves the CA certificate.
func (s *Store) SaveCACert(cert *x509.Certificate) error {
	return s.saveCert(s.CACertPath(), cert)
}

// LoadCACert loads the CA certificate.
func (s *Store) LoadCACert() (*x509.Certificate, error) {
	return s.loadCert(s.CACertPath())
}

// SaveCert saves an issued certificate and appends it to the index.
func (s *Store) SaveCert(cert *x509.Certificate) error {
	if err := s.saveCert(s.CertPath(cert.SerialNumber.Bytes()), cert); err != nil {
		return err
	}
	return s.appendIndex(cert)
}

// LoadCert loads an issued certificate by serial number.
func (s *Store) LoadCert(serial []byte) (*x509.Certificate, error) {
	cert, err := s.loadCert(s.CertPath(serial))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCertNotFound
		}
		return nil, err
	}
	return cert, nil
}

// FindByCommonName returns the issued certificate with the given subject
// common name. When several match, the one expiring last wins. Returns
// ErrCertNotFound when no certificate matches.
func (s *Store) FindByCommonName(name string) (*x509.Certificate, error) {
	certsDir := filepath.Join(s.basePath, "certs")
	entries, err := os.ReadDir(certsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCertNotFound
		}
		return nil, fmt.Errorf("failed to read certs directory: %w", err)
	}

	var best *x509.Certificate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".crt") {
			continue
		}
		cert, err := s.loadCert(filepath.Join(certsDir, entry.Name()))
		if err != nil {
			continue
		}
		if cert.Subject.CommonName != name {
			continue
		}
		if best == nil || cert.NotAfter.After(best.NotAfter) {
			best = cert
		}
	}

	if best == nil {
		return nil, ErrCertNotFound
	}
	return best, nil
}

// NextSerial returns the next serial number and advances the counter.
// Serialized: exactly one serial is ever handed out per counter value.
func (s *Store) NextSerial() ([]byte, error) {
	s.serialMu.Lock()
	defer s.serialMu.Unlock()

	serialPath := filepath.Join(s.basePath, "serial")

	data, err := os.ReadFile(serialPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read serial file: %w", err)
	}

	serialHex := strings.TrimSpace(string(data))
	serial, err := hex.DecodeString(serialHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse serial: %w", err)
	}

	if len(serial) > maxSerialWidth {
		return nil, ErrSerialExhausted
	}

	next := incrementSerial(serial)
	if err := os.WriteFile(serialPath, []byte(hex.EncodeToString(next)+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("failed to update serial file: %w", err)
	}

	return serial, nil
}

// incrementSerial increments a big-endian byte slice by 1.
func incrementSerial(serial []byte) []byte {
	result := make([]byte, len(serial))
	copy(result, serial)

	for i := len(result) - 1; i >= 0; i-- {
		result[i]++
		if result[i] != 0 {
			return result
		}
	}

	// Overflow - prepend a byte
	return append([]byte{1}, result...)
}

// saveCert saves a certificate to a PEM file.
func (s *Store) saveCert(path string, cert *x509.Certificate) error {
	block := &pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert.Raw,
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create certificate file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := pem.Encode(f, block); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}

	return nil
}

// loadCert loads a certificate from a PEM file.
func (s *Store) loadCert(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("no certificate found in %s", path)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return cert, nil
}

// appendIndex appends an issuance entry to the index file.
// Format: V\t{expiry}\t{serial}\t{subject}
func (s *Store) appendIndex(cert *x509.Certificate) error {
	indexPath := filepath.Join(s.basePath, "index.txt")
	f, err := os.OpenFile(indexPath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() { _ = f.Close() }()

	entry := fmt.Sprintf("V\t%s\t%s\t%s\n",
		cert.NotAfter.UTC().Format("060102150405Z"),
		hex.EncodeToString(cert.SerialNumber.Bytes()),
		cert.Subject.String(),
	)

	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("failed to write index entry: %w", err)
	}

	return nil
}

package keystore

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	keyPEMType = "MTLSID ENCRYPTED KEY"
	keyExt     = ".key"
	blobExt    = ".blob"
)

// SoftwareStore is a file-backed SecureKeyStore. Private keys are ECDSA
// P-256, encrypted at rest with an argon2id-derived AES-256-GCM key.
// Directory structure:
//
//	{base}/
//	  ├── keys/   # {id}.key encrypted private keys
//	  └── blobs/  # {label}.blob opaque data
type SoftwareStore struct {
	mu         sync.Mutex
	basePath   string
	passphrase []byte
}

// Ensure SoftwareStore implements SecureKeyStore.
var _ SecureKeyStore = (*SoftwareStore)(nil)

// NewSoftwareStore creates a file-backed store rooted at basePath.
func NewSoftwareStore(basePath string, passphrase []byte) (*SoftwareStore, error) {
	for _, dir := range []string{basePath, filepath.Join(basePath, "keys"), filepath.Join(basePath, "blobs")} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &SoftwareStore{
		basePath:   basePath,
		passphrase: passphrase,
	}, nil
}

// GenerateKeypair creates a new ECDSA P-256 key pair and persists the
// private key encrypted under a fresh reference.
func (s *SoftwareStore) GenerateKeypair(ctx context.Context) (KeyRef, error) {
	if err := ctx.Err(); err != nil {
		return KeyRef{}, err
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return KeyRef{}, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	der, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return KeyRef{}, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	ref := KeyRef{ID: uuid.NewString()}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeEncrypted(s.keyPath(ref.ID), der); err != nil {
		return KeyRef{}, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	return ref, nil
}

// Signer loads the referenced private key and returns it as a signer.
func (s *SoftwareStore) Signer(ref KeyRef) (crypto.Signer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	der, err := s.readEncrypted(s.keyPath(ref.ID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}

	priv, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return priv, nil
}

// DeleteKey removes the referenced key file.
func (s *SoftwareStore) DeleteKey(ref KeyRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.keyPath(ref.ID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// Keys lists all key references in the store.
func (s *SoftwareStore) Keys() ([]KeyRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.basePath, "keys"))
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	var refs []KeyRef
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, keyExt) {
			continue
		}
		refs = append(refs, KeyRef{ID: strings.TrimSuffix(name, keyExt)})
	}
	return refs, nil
}

// Store persists opaque data under a label, encrypted like key material.
func (s *SoftwareStore) Store(label string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeEncrypted(s.blobPath(label), data)
}

// Retrieve returns the data stored under a label.
func (s *SoftwareStore) Retrieve(label string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readEncrypted(s.blobPath(label))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return data, nil
}

// List returns all labels with stored data.
func (s *SoftwareStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.basePath, "blobs"))
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	var labels []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, blobExt) {
			continue
		}
		labels = append(labels, strings.TrimSuffix(name, blobExt))
	}
	return labels, nil
}

// Delete removes the data stored under a label.
func (s *SoftwareStore) Delete(label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.blobPath(label)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

func (s *SoftwareStore) keyPath(id string) string {
	return filepath.Join(s.basePath, "keys", id+keyExt)
}

func (s *SoftwareStore) blobPath(label string) string {
	return filepath.Join(s.basePath, "blobs", label+blobExt)
}

// writeEncrypted seals plaintext and writes it to path.
func (s *SoftwareStore) writeEncrypted(path string, plaintext []byte) error {
	data, err := EncryptToPEM(s.passphrase, plaintext, keyPEMType)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// readEncrypted reads and opens a PEM block written by writeEncrypted.
func (s *SoftwareStore) readEncrypted(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecryptFromPEM(s.passphrase, data, keyPEMType)
}

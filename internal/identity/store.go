package identity

import (
	"crypto/x509"
	"errors"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/remiblancher/mtls-identity/internal/keystore"
)

// Sentinel errors for identity storage.
var (
	// ErrIdentityNotFound indicates no identity is stored under the label.
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrNoCurrentIdentity indicates no identity has been made current.
	ErrNoCurrentIdentity = errors.New("no current identity")
)

// Store persists identities and tracks which one is current.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists an identity under its label.
	Save(id *Identity) error

	// Load returns the identity stored under the label.
	// Returns ErrIdentityNotFound if absent.
	Load(label string) (*Identity, error)

	// SetCurrent marks the identity under the label as current.
	SetCurrent(label string) error

	// Current returns the current identity.
	// Returns ErrNoCurrentIdentity if none is set.
	Current() (*Identity, error)

	// List returns the labels of all stored identities.
	List() ([]string, error)

	// Delete removes the identity stored under the label.
	// Deleting the current identity clears the current marker.
	Delete(label string) error
}

// record is the CBOR on-disk form of an identity.
type record struct {
	Label   string `cbor:"label"`
	KeyID   string `cbor:"key_id"`
	Source  string `cbor:"source"`
	CertDER []byte `cbor:"cert_der"`
}

const currentLabel = "current-identity"

// FileStore persists identities through a SecureKeyStore's labeled blob
// storage, encoding records as CBOR. The current identity is cached in
// memory behind a single mutex.
type FileStore struct {
	mu      sync.Mutex
	keys    keystore.SecureKeyStore
	current *Identity
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)

// NewFileStore creates an identity store backed by the given key store.
func NewFileStore(keys keystore.SecureKeyStore) *FileStore {
	return &FileStore{keys: keys}
}

// Save persists an identity under its label.
func (s *FileStore) Save(id *Identity) error {
	if id.Label == "" {
		return fmt.Errorf("identity label is required")
	}

	rec := record{
		Label:   id.Label,
		KeyID:   id.KeyRef.ID,
		Source:  string(id.Source),
		CertDER: id.Certificate.Raw,
	}

	data, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode identity record: %w", err)
	}

	if err := s.keys.Store(id.Label, data); err != nil {
		return fmt.Errorf("failed to store identity: %w", err)
	}
	return nil
}

// Load returns the identity stored under the label.
func (s *FileStore) Load(label string) (*Identity, error) {
	data, err := s.keys.Retrieve(label)
	if err != nil {
		if errors.Is(err, keystore.ErrBlobNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to retrieve identity: %w", err)
	}

	var rec record
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode identity record: %w", err)
	}

	cert, err := x509.ParseCertificate(rec.CertDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse identity certificate: %w", err)
	}

	return &Identity{
		Certificate: cert,
		KeyRef:      keystore.KeyRef{ID: rec.KeyID},
		Label:       rec.Label,
		Source:      Source(rec.Source),
	}, nil
}

// SetCurrent marks the identity under the label as current.
func (s *FileStore) SetCurrent(label string) error {
	id, err := s.Load(label)
	if err != nil {
		return err
	}

	if err := s.keys.Store(currentLabel, []byte(label)); err != nil {
		return fmt.Errorf("failed to persist current marker: %w", err)
	}

	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
	return nil
}

// Current returns the current identity.
func (s *FileStore) Current() (*Identity, error) {
	s.mu.Lock()
	if s.current != nil {
		id := s.current
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	marker, err := s.keys.Retrieve(currentLabel)
	if err != nil {
		if errors.Is(err, keystore.ErrBlobNotFound) {
			return nil, ErrNoCurrentIdentity
		}
		return nil, fmt.Errorf("failed to read current marker: %w", err)
	}

	id, err := s.Load(string(marker))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
	return id, nil
}

// List returns the labels of all stored identities.
func (s *FileStore) List() ([]string, error) {
	labels, err := s.keys.List()
	if err != nil {
		return nil, err
	}

	var out []string
	for _, l := range labels {
		if l == currentLabel {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// Delete removes the identity stored under the label. Identities are
// destroyed only through this explicit path, never silently.
func (s *FileStore) Delete(label string) error {
	if err := s.keys.Delete(label); err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}

	s.mu.Lock()
	if s.current != nil && s.current.Label == label {
		s.current = nil
		s.mu.Unlock()
		return s.keys.Delete(currentLabel)
	}
	s.mu.Unlock()
	return nil
}

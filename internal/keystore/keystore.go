// Package keystore abstracts generation, storage, and use of asymmetric
// keys. Callers receive opaque key references and a crypto.Signer; private
// key material never crosses the interface.
package keystore

import (
	"context"
	"crypto"
	"errors"
)

// KeyRef is an opaque handle to a private key held by a store.
type KeyRef struct {
	// ID identifies the key within its store.
	ID string
}

// IsZero reports whether the reference is empty.
func (r KeyRef) IsZero() bool {
	return r.ID == ""
}

// Sentinel errors for key store operations.
var (
	// ErrKeyNotFound indicates the referenced key does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrBlobNotFound indicates no data is stored under the label.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrKeyGeneration indicates key pair generation failed.
	ErrKeyGeneration = errors.New("key generation failed")
)

// SecureKeyStore is the platform-abstracted key capability.
// Implementations must be safe for concurrent use.
type SecureKeyStore interface {
	// GenerateKeypair creates a new asymmetric key pair inside the store
	// and returns a reference to it.
	GenerateKeypair(ctx context.Context) (KeyRef, error)

	// Signer returns a signer backed by the referenced key.
	// Returns ErrKeyNotFound if the key does not exist.
	Signer(ref KeyRef) (crypto.Signer, error)

	// DeleteKey removes the referenced key. Deleting a missing key is
	// not an error; orphans from aborted enrollments are cleaned up
	// lazily through this path.
	DeleteKey(ref KeyRef) error

	// Keys lists the references of all keys held by the store.
	Keys() ([]KeyRef, error)

	// Store persists opaque data under a label.
	Store(label string, data []byte) error

	// Retrieve returns the data stored under a label.
	// Returns ErrBlobNotFound if absent.
	Retrieve(label string) ([]byte, error)

	// List returns all labels with stored data.
	List() ([]string, error)

	// Delete removes the data stored under a label.
	Delete(label string) error
}

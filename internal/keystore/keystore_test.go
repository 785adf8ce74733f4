package keystore

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *SoftwareStore {
	t.Helper()
	store, err := NewSoftwareStore(t.TempDir(), []byte("test-passphrase"))
	if err != nil {
		t.Fatalf("NewSoftwareStore() error = %v", err)
	}
	return store
}

// =============================================================================
// Key Operation Tests
// =============================================================================

func TestF_GenerateKeypair_SignRoundTrip(t *testing.T) {
	store := newTestStore(t)

	ref, err := store.GenerateKeypair(context.Background())
	if err != nil {
		t.Fatalf("GenerateKeypair() error = %v", err)
	}
	if ref.IsZero() {
		t.Fatal("GenerateKeypair() returned a zero reference")
	}

	signer, err := store.Signer(ref)
	if err != nil {
		t.Fatalf("Signer() error = %v", err)
	}

	digest := sha256.Sum256([]byte("payload"))
	sig, err := signer.Sign(rand.Reader, digest[:], nil)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	pub, ok := signer.Public().(*ecdsa.PublicKey)
	if !ok {
		t.Fatalf("Public() type = %T, want *ecdsa.PublicKey", signer.Public())
	}
	if !ecdsa.VerifyASN1(pub, digest[:], sig) {
		t.Error("signature did not verify against the store's public key")
	}
}

func TestU_Signer_UnknownRef(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Signer(KeyRef{ID: "no-such-key"})
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Signer() error = %v, want ErrKeyNotFound", err)
	}
}

func TestU_DeleteKey(t *testing.T) {
	store := newTestStore(t)

	ref, err := store.GenerateKeypair(context.Background())
	if err != nil {
		t.Fatalf("GenerateKeypair() error = %v", err)
	}

	if err := store.DeleteKey(ref); err != nil {
		t.Fatalf("DeleteKey() error = %v", err)
	}
	if _, err := store.Signer(ref); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Signer() after delete error = %v, want ErrKeyNotFound", err)
	}

	// Deleting again is not an error: orphan cleanup must be idempotent.
	if err := store.DeleteKey(ref); err != nil {
		t.Errorf("DeleteKey() of missing key error = %v, want nil", err)
	}
}

func TestU_Keys_ListsGeneratedRefs(t *testing.T) {
	store := newTestStore(t)

	ref1, _ := store.GenerateKeypair(context.Background())
	ref2, _ := store.GenerateKeypair(context.Background())

	refs, err := store.Keys()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("Keys() returned %d refs, want 2", len(refs))
	}

	found := map[string]bool{}
	for _, r := range refs {
		found[r.ID] = true
	}
	if !found[ref1.ID] || !found[ref2.ID] {
		t.Errorf("Keys() = %v, want %v and %v", refs, ref1, ref2)
	}
}

func TestU_GenerateKeypair_CancelledContext(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.GenerateKeypair(ctx); err == nil {
		t.Error("GenerateKeypair() with cancelled context must fail")
	}
}

// =============================================================================
// Blob Operation Tests
// =============================================================================

func TestF_Blob_StoreRetrieve(t *testing.T) {
	store := newTestStore(t)

	payload := []byte("opaque identity record")
	if err := store.Store("identity-dev-01", payload); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	got, err := store.Retrieve("identity-dev-01")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Retrieve() = %q, want %q", got, payload)
	}

	labels, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(labels) != 1 || labels[0] != "identity-dev-01" {
		t.Errorf("List() = %v, want [identity-dev-01]", labels)
	}

	if err := store.Delete("identity-dev-01"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Retrieve("identity-dev-01"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Retrieve() after delete error = %v, want ErrBlobNotFound", err)
	}
}

func TestU_Retrieve_Unknown(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Retrieve("absent"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Retrieve() error = %v, want ErrBlobNotFound", err)
	}
}

// =============================================================================
// Encryption-at-Rest Tests
// =============================================================================

func TestF_EncryptDecrypt_PEMRoundTrip(t *testing.T) {
	plaintext := []byte("secret key material")
	passphrase := []byte("correct horse battery staple")

	sealed, err := EncryptToPEM(passphrase, plaintext, "TEST ENCRYPTED DATA")
	if err != nil {
		t.Fatalf("EncryptToPEM() error = %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Error("sealed PEM contains the plaintext")
	}

	opened, err := DecryptFromPEM(passphrase, sealed, "TEST ENCRYPTED DATA")
	if err != nil {
		t.Fatalf("DecryptFromPEM() error = %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("DecryptFromPEM() = %q, want %q", opened, plaintext)
	}
}

func TestU_DecryptFromPEM_WrongPassphrase(t *testing.T) {
	sealed, err := EncryptToPEM([]byte("right"), []byte("data"), "TEST ENCRYPTED DATA")
	if err != nil {
		t.Fatalf("EncryptToPEM() error = %v", err)
	}

	if _, err := DecryptFromPEM([]byte("wrong"), sealed, "TEST ENCRYPTED DATA"); err == nil {
		t.Error("DecryptFromPEM() with wrong passphrase must fail")
	}
}

func TestU_WrongPassphrase_Store(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSoftwareStore(dir, []byte("right"))
	if err != nil {
		t.Fatalf("NewSoftwareStore() error = %v", err)
	}
	ref, err := store.GenerateKeypair(context.Background())
	if err != nil {
		t.Fatalf("GenerateKeypair() error = %v", err)
	}

	reopened, err := NewSoftwareStore(dir, []byte("wrong"))
	if err != nil {
		t.Fatalf("NewSoftwareStore() error = %v", err)
	}
	if _, err := reopened.Signer(ref); err == nil {
		t.Error("Signer() with wrong passphrase must fail")
	}
}

package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for the key-encryption key.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// EncryptToPEM seals plaintext with AES-256-GCM under an argon2id-derived
// key and encodes it as a PEM block carrying the KDF salt and nonce.
func EncryptToPEM(passphrase, plaintext []byte, blockType string) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := deriveAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	block := &pem.Block{
		Type: blockType,
		Headers: map[string]string{
			"KDF":   "argon2id",
			"Salt":  hex.EncodeToString(salt),
			"Nonce": hex.EncodeToString(nonce),
		},
		Bytes: aead.Seal(nil, nonce, plaintext, nil),
	}

	return pem.EncodeToMemory(block), nil
}

// DecryptFromPEM opens a PEM block written by EncryptToPEM.
func DecryptFromPEM(passphrase, data []byte, blockType string) ([]byte, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != blockType {
		return nil, fmt.Errorf("no %s block found in PEM data", blockType)
	}

	salt, err := hex.DecodeString(block.Headers["Salt"])
	if err != nil {
		return nil, fmt.Errorf("invalid salt header: %w", err)
	}
	nonce, err := hex.DecodeString(block.Headers["Nonce"])
	if err != nil {
		return nil, fmt.Errorf("invalid nonce header: %w", err)
	}

	aead, err := deriveAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, block.Bytes, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// deriveAEAD builds the AES-256-GCM cipher for a passphrase and salt.
func deriveAEAD(passphrase, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(blockCipher)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

// Package cryptobox implements client-side payload encryption for the gateway.
//
// Password mode:
//
//	key  = PBKDF2-HMAC-SHA256(password, salt, 100000, 32)
//	blob = salt(16B) || nonce(12B) || AES-256-GCM(key, nonce, plaintext) || tag(16B)
//
// Raw-key mode uses the same AEAD with nonce(12B) || ciphertext || tag(16B),
// and the raw key can be sealed for a recipient with an anonymous NaCl box.
package cryptobox

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltLen is the length of the PBKDF2 salt prefix in bytes.
	SaltLen = 16

	// NonceLen is the length of the AES-GCM nonce in bytes.
	NonceLen = 12

	// TagLen is the length of the GCM authentication tag in bytes.
	TagLen = 16

	// KeyLen is the AES-256 key length in bytes.
	KeyLen = 32

	// PBKDF2Iterations is the fixed PBKDF2 iteration count.
	PBKDF2Iterations = 100000

	// HeaderLen is the fixed prefix of a password blob (salt || nonce).
	HeaderLen = SaltLen + NonceLen
)

// DeriveKey derives the 256-bit AES key for password and salt.
// The derivation is deterministic: the same pair always yields the same key.
func DeriveKey(password string, salt []byte) ([]byte, error) {
	if len(salt) != SaltLen {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidSalt, len(salt))
	}
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, KeyLen, sha256.New), nil
}

// GenerateKey returns a fresh random 256-bit symmetric key.
func GenerateKey() ([]byte, error) {
	return randomBytes(KeyLen)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRandom, err)
	}
	return b, nil
}

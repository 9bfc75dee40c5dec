package cryptobox

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// Encrypt encrypts plaintext under a key derived from password.
// Returns salt(16B) || nonce(12B) || ciphertext || tag(16B).
func Encrypt(plaintext []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}

	salt, err := randomBytes(SaltLen)
	if err != nil {
		return nil, err
	}
	key, err := DeriveKey(password, salt)
	if err != nil {
		return nil, err
	}

	sealed, err := aesGCMSeal(plaintext, key)
	if err != nil {
		return nil, err
	}

	blob := make([]byte, 0, SaltLen+len(sealed))
	blob = append(blob, salt...)
	blob = append(blob, sealed...)
	return blob, nil
}

// Decrypt reverses Encrypt. Any failure, including a truncated blob or a
// tag mismatch caused by the wrong password, returns ErrDecryption and no
// partial output.
func Decrypt(blob []byte, password string) ([]byte, error) {
	if len(blob) < HeaderLen+TagLen {
		return nil, ErrDecryption
	}

	key, err := DeriveKey(password, blob[:SaltLen])
	if err != nil {
		return nil, ErrDecryption
	}

	plaintext, err := aesGCMOpen(blob[SaltLen:], key)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// EncryptWithKey encrypts plaintext under a raw 32-byte key.
// Returns nonce(12B) || ciphertext || tag(16B).
func EncryptWithKey(plaintext, key []byte) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, ErrInvalidKey
	}
	return aesGCMSeal(plaintext, key)
}

// DecryptWithKey reverses EncryptWithKey.
func DecryptWithKey(ciphertext, key []byte) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, ErrInvalidKey
	}
	plaintext, err := aesGCMOpen(ciphertext, key)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// aesGCMSeal returns nonce(12B) || ciphertext || tag(16B).
func aesGCMSeal(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, err := randomBytes(NonceLen)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// aesGCMOpen decrypts nonce(12B) || ciphertext || tag(16B).
func aesGCMOpen(data, key []byte) ([]byte, error) {
	if len(data) < NonceLen+TagLen {
		return nil, ErrDecryption
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, data[:NonceLen], data[NonceLen:], nil)
	if err != nil {
		return nil, ErrDecryption
	}

	// Normalize nil to empty slice for consistency.
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptobox: GCM creation failed: %w", err)
	}
	return gcm, nil
}

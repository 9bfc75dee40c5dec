package cryptobox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// Sealer encrypts a symmetric key so that only the holder of the recipient's
// private key can recover it.
type Sealer interface {
	Seal(rawKey []byte, recipient *[32]byte) ([]byte, error)
}

// NaClSealer seals keys with an anonymous NaCl box (X25519 + XSalsa20-Poly1305).
// The sender identity is not revealed.
type NaClSealer struct{}

// Compile-time interface check.
var _ Sealer = NaClSealer{}

// Seal implements Sealer.
func (NaClSealer) Seal(rawKey []byte, recipient *[32]byte) ([]byte, error) {
	sealed, err := box.SealAnonymous(nil, rawKey, recipient, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSealFailed, err)
	}
	return sealed, nil
}

// SealedKey is the result of SealKey.
type SealedKey struct {
	// Value is the base64 sealed box, or the base64 raw key when Insecure.
	Value string `json:"value"`

	// Insecure reports that no sealing happened and Value carries the raw
	// key. Callers must surface this to the user.
	Insecure bool `json:"insecure"`
}

// SealKey seals rawKey for recipient using sealer.
//
// When sealer or recipient is nil there is no sealing capability; the raw key
// is returned base64-encoded with Insecure set.
func SealKey(sealer Sealer, rawKey []byte, recipient *[32]byte) (*SealedKey, error) {
	if len(rawKey) != KeyLen {
		return nil, ErrInvalidKey
	}
	if sealer == nil || recipient == nil {
		return &SealedKey{
			Value:    base64.StdEncoding.EncodeToString(rawKey),
			Insecure: true,
		}, nil
	}

	sealed, err := sealer.Seal(rawKey, recipient)
	if err != nil {
		return nil, err
	}
	return &SealedKey{Value: base64.StdEncoding.EncodeToString(sealed)}, nil
}

// OpenKey recovers the raw key from a SealedKey. Insecure keys are decoded
// directly; publicKey and privateKey are ignored for them.
func OpenKey(sk *SealedKey, publicKey, privateKey *[32]byte) ([]byte, error) {
	if sk == nil {
		return nil, fmt.Errorf("%w: sealed key is nil", ErrSealFailed)
	}

	data, err := base64.StdEncoding.DecodeString(sk.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %w", ErrSealFailed, err)
	}
	if sk.Insecure {
		if len(data) != KeyLen {
			return nil, ErrInvalidKey
		}
		return data, nil
	}

	if publicKey == nil || privateKey == nil {
		return nil, fmt.Errorf("%w: recipient key pair required", ErrSealFailed)
	}
	raw, ok := box.OpenAnonymous(nil, data, publicKey, privateKey)
	if !ok {
		return nil, ErrSealFailed
	}
	return raw, nil
}

// GenerateRecipientKey creates an X25519 key pair for receiving sealed keys.
func GenerateRecipientKey() (publicKey, privateKey *[32]byte, err error) {
	publicKey, privateKey, err = box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRandom, err)
	}
	return publicKey, privateKey, nil
}

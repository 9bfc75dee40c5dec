// Package wallet holds the anchoring account: a BIP39 mnemonic, the BIP32
// tree derived from it, and the encrypted seed kept on disk.
//
// Key hierarchy: m/44'/236'/0'/{chain}/{index}. External chain keys receive
// funds and sign storage orders; internal chain keys take change.
package wallet

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/compat/bip39"
	"golang.org/x/crypto/argon2"

	"github.com/bitfsorg/anchorgate-go/cryptobox"
)

const (
	// Mnemonic entropy sizes.
	Mnemonic12Words = 128
	Mnemonic24Words = 256

	// Argon2id parameters for seed encryption.
	Argon2Time        = 3
	Argon2Memory      = 64 * 1024 // KiB
	Argon2Parallelism = 4

	// Encrypted seed layout sizes.
	SaltLen     = 16
	NonceLen    = cryptobox.NonceLen
	ChecksumLen = 4
)

// GenerateMnemonic creates a BIP39 mnemonic from entropyBits of randomness:
// Mnemonic12Words or Mnemonic24Words.
func GenerateMnemonic(entropyBits int) (string, error) {
	if entropyBits != Mnemonic12Words && entropyBits != Mnemonic24Words {
		return "", ErrInvalidEntropy
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", fmt.Errorf("wallet: entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("wallet: mnemonic: %w", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic reports whether mnemonic is valid BIP39.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// SeedFromMnemonic derives the 64-byte BIP39 seed. An empty passphrase
// still takes part in the derivation.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !ValidateMnemonic(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("wallet: seed: %w", err)
	}
	return seed, nil
}

func seedKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, Argon2Time, Argon2Memory, Argon2Parallelism, cryptobox.KeyLen)
}

func seedChecksum(seed []byte) []byte {
	sum := sha256.Sum256(seed)
	return sum[:ChecksumLen]
}

// EncryptSeed encrypts seed under password:
//
//	salt(16B) || nonce(12B) || AES-256-GCM(argon2id(password, salt), seed || checksum)
//
// where checksum is SHA256(seed)[:4].
func EncryptSeed(seed []byte, password string) ([]byte, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("wallet: salt: %w", err)
	}

	plaintext := append(append([]byte(nil), seed...), seedChecksum(seed)...)
	sealed, err := cryptobox.EncryptWithKey(plaintext, seedKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("wallet: encrypt seed: %w", err)
	}
	return append(salt, sealed...), nil
}

// DecryptSeed reverses EncryptSeed. A wrong password or corrupted input
// yields ErrDecryptionFailed; a decrypted seed whose checksum does not match
// yields ErrChecksumMismatch.
func DecryptSeed(encrypted []byte, password string) ([]byte, error) {
	if len(encrypted) < SaltLen+NonceLen+ChecksumLen {
		return nil, ErrDecryptionFailed
	}
	salt := encrypted[:SaltLen]

	plaintext, err := cryptobox.DecryptWithKey(encrypted[SaltLen:], seedKey(password, salt))
	if err != nil {
		if errors.Is(err, cryptobox.ErrDecryption) || errors.Is(err, cryptobox.ErrInvalidKey) {
			return nil, ErrDecryptionFailed
		}
		return nil, err
	}
	if len(plaintext) < ChecksumLen {
		return nil, ErrDecryptionFailed
	}

	seed := plaintext[:len(plaintext)-ChecksumLen]
	if !bytes.Equal(plaintext[len(seed):], seedChecksum(seed)) {
		return nil, ErrChecksumMismatch
	}
	return seed, nil
}

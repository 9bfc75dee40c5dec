package wallet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// KeystoreFile is the encrypted seed file name inside the data directory.
const KeystoreFile = "wallet.enc"

// KeystorePath returns the keystore location inside dataDir.
func KeystorePath(dataDir string) string {
	return filepath.Join(dataDir, KeystoreFile)
}

// SaveSeed encrypts seed with password and writes it to path with 0600
// permissions. An existing keystore is never overwritten.
func SaveSeed(path string, seed []byte, password string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrKeystoreExists, path)
	}
	enc, err := EncryptSeed(seed, password)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("wallet: create keystore directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrKeystoreExists, path)
		}
		return fmt.Errorf("wallet: create keystore: %w", err)
	}
	if _, err := f.Write(enc); err != nil {
		_ = f.Close()
		return fmt.Errorf("wallet: write keystore: %w", err)
	}
	return f.Close()
}

// LoadSeed reads and decrypts the keystore at path.
func LoadSeed(path, password string) ([]byte, error) {
	enc, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrKeystoreNotFound, path)
		}
		return nil, fmt.Errorf("wallet: read keystore: %w", err)
	}
	return DecryptSeed(enc, password)
}

// Open loads the keystore at path and builds the wallet for network.
func Open(path, password string, network *NetworkConfig) (*Wallet, error) {
	seed, err := LoadSeed(path, password)
	if err != nil {
		return nil, err
	}
	return NewWallet(seed, network)
}

package cryptobox

import "errors"

var (
	// ErrDecryption indicates authenticated decryption failed: wrong password,
	// wrong key, or a corrupted/truncated blob. It is the only error Decrypt
	// returns.
	ErrDecryption = errors.New("cryptobox: decryption failed (wrong password or corrupted data)")

	// ErrEmptyPassword indicates an empty password was supplied for encryption.
	ErrEmptyPassword = errors.New("cryptobox: password is empty")

	// ErrInvalidKey indicates a symmetric key is not KeyLen bytes.
	ErrInvalidKey = errors.New("cryptobox: key must be 32 bytes")

	// ErrInvalidSalt indicates the KDF salt is not SaltLen bytes.
	ErrInvalidSalt = errors.New("cryptobox: salt must be 16 bytes")

	// ErrSealFailed indicates a sealed key could not be produced or opened.
	ErrSealFailed = errors.New("cryptobox: sealed box operation failed")

	// ErrRandom indicates the system random source failed.
	ErrRandom = errors.New("cryptobox: random source failure")
)

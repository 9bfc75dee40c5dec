package vault

import "errors"

var (
	// ErrNoGateway indicates New was called without a storage gateway.
	ErrNoGateway = errors.New("vault: storage gateway is required")

	// ErrAnchorDisabled indicates an anchoring call on a vault built
	// without a ChainAnchor.
	ErrAnchorDisabled = errors.New("vault: anchoring is not enabled")

	// ErrNoSigningKey indicates a signed store without a configured key.
	ErrNoSigningKey = errors.New("vault: no signing key configured")

	// ErrEncryptionConflict indicates both a password and EncryptKey were
	// given for one store.
	ErrEncryptionConflict = errors.New("vault: password and key encryption are mutually exclusive")

	// ErrDataDirLocked indicates another process holds the data directory.
	ErrDataDirLocked = errors.New("vault: data directory is in use")

	// ErrPasswordRequired indicates the keystore must be unlocked.
	ErrPasswordRequired = errors.New("vault: password is required to unlock the wallet")
)

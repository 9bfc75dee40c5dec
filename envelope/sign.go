package envelope

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// Sign signs message with key and records the result in meta: the signed
// message itself, a hex DER signature over SHA-256(message), and the hex
// compressed public key as the signer identity.
func Sign(meta *Metadata, key *ec.PrivateKey, message string) error {
	if key == nil {
		return ErrNilKey
	}

	digest := sha256.Sum256([]byte(message))
	sig, err := key.Sign(digest[:])
	if err != nil {
		return fmt.Errorf("envelope: sign: %w", err)
	}

	meta.SignedMessage = message
	meta.Signature = hex.EncodeToString(sig.Serialize())
	meta.SignerID = hex.EncodeToString(key.PubKey().Compressed())
	return nil
}

// Verify checks the signature recorded in meta against SignerID and
// SignedMessage.
func Verify(meta Metadata) error {
	if meta.Signature == "" || meta.SignerID == "" {
		return ErrNoSignature
	}

	sigBytes, err := hex.DecodeString(meta.Signature)
	if err != nil {
		return fmt.Errorf("%w: signature is not hex", ErrBadSignature)
	}
	pubBytes, err := hex.DecodeString(meta.SignerID)
	if err != nil {
		return fmt.Errorf("%w: signer id is not hex", ErrBadSignature)
	}

	pub, err := ec.PublicKeyFromBytes(pubBytes)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	sig, err := ec.ParseDERSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	}

	digest := sha256.Sum256([]byte(meta.SignedMessage))
	if !sig.Verify(digest[:], pub) {
		return ErrBadSignature
	}
	return nil
}

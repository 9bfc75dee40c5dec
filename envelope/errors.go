package envelope

import "errors"

var (
	// ErrNoSignature indicates the metadata carries no signature to verify.
	ErrNoSignature = errors.New("envelope: no signature present")

	// ErrBadSignature indicates the signature does not verify against the
	// signer identity and signed message.
	ErrBadSignature = errors.New("envelope: signature verification failed")

	// ErrNilKey indicates a nil signing key was provided.
	ErrNilKey = errors.New("envelope: signing key is nil")

	// ErrInvalidByteArray indicates a data array element is not an integer in 0..255.
	ErrInvalidByteArray = errors.New("envelope: data must be an array of integers in 0..255")
)

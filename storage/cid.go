package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"
)

// parseCID decodes a network content id.
func parseCID(id ContentID) (cid.Cid, error) {
	c, err := cid.Parse(string(id))
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: %q: %w", ErrInvalidContentID, string(id), err)
	}
	return c, nil
}

// verifyContent checks data against c when c addresses a single raw block.
// Other codecs describe DAGs whose root hash cannot be recomputed from the
// file bytes alone; they are trusted as returned.
func verifyContent(c cid.Cid, data []byte) error {
	pref := c.Prefix()
	if pref.Codec != cid.Raw {
		return nil
	}
	got, err := pref.Sum(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrContentMismatch, err)
	}
	if !got.Equals(c) {
		return fmt.Errorf("%w: want %s, got %s", ErrContentMismatch, c, got)
	}
	return nil
}

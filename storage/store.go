package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ContentID identifies stored content. Network ids are content hashes (CIDs);
// local fallback ids are random and carry LocalPrefix.
type ContentID string

// LocalPrefix marks ids issued by the local fallback store.
const LocalPrefix = "local_"

// localHexLen is the number of hex characters after LocalPrefix.
const localHexLen = 32

// NewLocalID returns a fresh local id: LocalPrefix followed by the 32 hex
// characters of a random UUID.
func NewLocalID() ContentID {
	u := uuid.New()
	return ContentID(LocalPrefix + hex.EncodeToString(u[:]))
}

// IsLocal reports whether id was issued by the local fallback store.
func (id ContentID) IsLocal() bool {
	return strings.HasPrefix(string(id), LocalPrefix)
}

func (id ContentID) String() string { return string(id) }

// validateLocalID checks the local_ prefix and the hex suffix.
func validateLocalID(id ContentID) error {
	s := string(id)
	if !id.IsLocal() || len(s) != len(LocalPrefix)+localHexLen {
		return fmt.Errorf("%w: %q", ErrInvalidContentID, s)
	}
	if _, err := hex.DecodeString(s[len(LocalPrefix):]); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidContentID, s)
	}
	return nil
}

// Source names where a payload was stored or retrieved.
type Source string

const (
	SourceNetwork Source = "network"
	SourceMirror  Source = "gateway-mirror"
	SourceLocal   Source = "local"
	SourceCache   Source = "cache"
)

// Backend is one storage access path. Store and Retrieve are bounded by ctx;
// a backend that cannot serve an id space (for example a network backend
// asked for a local id) returns ErrNotFound without doing I/O.
type Backend interface {
	// Name identifies the backend instance in logs, metrics and errors.
	Name() string

	// Source is the category reported to callers.
	Source() Source

	// Store persists data and returns its id.
	Store(ctx context.Context, data []byte) (ContentID, error)

	// Retrieve returns the bytes stored under id.
	Retrieve(ctx context.Context, id ContentID) ([]byte, error)

	// Pin asks the backend to retain id. Backends without retention
	// semantics return nil.
	Pin(ctx context.Context, id ContentID) error
}

// ReplicaReporter reports how many replicas of id a backend knows about.
type ReplicaReporter interface {
	Replicas(ctx context.Context, id ContentID) (int, error)
}

package storage

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

// ErrMetaNotFound indicates no metadata is recorded for an id.
var ErrMetaNotFound = errors.New("storage: metadata not found")

// ObjectMeta is the descriptive metadata recorded for stored content. It lets
// retrieval report what an object was even when its bytes are unreachable.
type ObjectMeta struct {
	ID            ContentID
	Filename      string
	MimeType      string
	Size          int64
	Encrypted     bool
	Signature     string
	SignerID      string
	SignedMessage string
	Timestamp     int64 // unix milliseconds from the envelope
	Source        Source
	StoredAt      time.Time
}

// MetadataStore persists ObjectMeta by id.
type MetadataStore interface {
	Put(meta ObjectMeta) error
	Get(id ContentID) (*ObjectMeta, error)
}

// MemMetaStore keeps metadata in memory.
type MemMetaStore struct {
	mu    sync.RWMutex
	items map[ContentID]ObjectMeta
}

// Compile-time interface checks.
var (
	_ MetadataStore = (*MemMetaStore)(nil)
	_ MetadataStore = (*BoltMetaStore)(nil)
)

// NewMemMetaStore returns an empty in-memory store.
func NewMemMetaStore() *MemMetaStore {
	return &MemMetaStore{items: make(map[ContentID]ObjectMeta)}
}

func (s *MemMetaStore) Put(meta ObjectMeta) error {
	if meta.ID == "" {
		return ErrInvalidContentID
	}
	s.mu.Lock()
	s.items[meta.ID] = meta
	s.mu.Unlock()
	return nil
}

func (s *MemMetaStore) Get(id ContentID) (*ObjectMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.items[id]
	if !ok {
		return nil, ErrMetaNotFound
	}
	return &m, nil
}

var bucketObjects = []byte("objects")

// BoltMetaStore persists metadata in a bbolt database, gob-encoded and keyed
// by id.
type BoltMetaStore struct {
	db *bbolt.DB
}

// OpenBoltMetaStore opens or creates the database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltMetaStore(dbPath string) (*BoltMetaStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("storage: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketObjects)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: create bucket: %w", err)
	}
	return &BoltMetaStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltMetaStore) Close() error { return s.db.Close() }

func (s *BoltMetaStore) Put(meta ObjectMeta) error {
	if meta.ID == "" {
		return ErrInvalidContentID
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(meta); err != nil {
		return fmt.Errorf("storage: encode metadata: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketObjects).Put([]byte(meta.ID), buf.Bytes())
	})
}

func (s *BoltMetaStore) Get(id ContentID) (*ObjectMeta, error) {
	var meta ObjectMeta
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketObjects).Get([]byte(id))
		if data == nil {
			return ErrMetaNotFound
		}
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&meta); err != nil {
			return fmt.Errorf("storage: decode metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

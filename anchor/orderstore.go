package anchor

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/anchorgate-go/storage"
)

// OrderStore keeps every revision of every order. Revisions are only ever
// appended; the latest revision is the current state.
type OrderStore interface {
	Append(o StorageOrder) error
	Latest(id storage.ContentID) (*StorageOrder, error)
	History(id storage.ContentID) ([]StorageOrder, error)
}

var (
	_ OrderStore = (*MemOrderStore)(nil)
	_ OrderStore = (*BoltOrderStore)(nil)
)

func checkOrder(o StorageOrder) error {
	if o.ContentID == "" {
		return fmt.Errorf("%w: empty content id", ErrInvalidOrder)
	}
	return nil
}

// MemOrderStore is an in-memory OrderStore.
type MemOrderStore struct {
	mu     sync.RWMutex
	orders map[storage.ContentID][]StorageOrder
}

// NewMemOrderStore returns an empty in-memory store.
func NewMemOrderStore() *MemOrderStore {
	return &MemOrderStore{orders: make(map[storage.ContentID][]StorageOrder)}
}

func (s *MemOrderStore) Append(o StorageOrder) error {
	if err := checkOrder(o); err != nil {
		return err
	}
	s.mu.Lock()
	s.orders[o.ContentID] = append(s.orders[o.ContentID], o)
	s.mu.Unlock()
	return nil
}

func (s *MemOrderStore) Latest(id storage.ContentID) (*StorageOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	revs := s.orders[id]
	if len(revs) == 0 {
		return nil, ErrOrderNotFound
	}
	o := revs[len(revs)-1]
	return &o, nil
}

func (s *MemOrderStore) History(id storage.ContentID) ([]StorageOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	revs := s.orders[id]
	if len(revs) == 0 {
		return nil, ErrOrderNotFound
	}
	return append([]StorageOrder(nil), revs...), nil
}

var bucketOrders = []byte("orders")

// BoltOrderStore persists order revisions in bbolt. Keys are
// contentID || 0x00 || seq (u64 big-endian), so a prefix scan yields the
// revisions of one id in append order.
type BoltOrderStore struct {
	db *bbolt.DB
}

// OpenBoltOrderStore opens or creates the database at dbPath.
func OpenBoltOrderStore(dbPath string) (*BoltOrderStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("anchor: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("anchor: open bolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketOrders)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("anchor: create bucket: %w", err)
	}
	return &BoltOrderStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltOrderStore) Close() error { return s.db.Close() }

func orderPrefix(id storage.ContentID) []byte {
	return append([]byte(id), 0x00)
}

func (s *BoltOrderStore) Append(o StorageOrder) error {
	if err := checkOrder(o); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(o); err != nil {
		return fmt.Errorf("anchor: encode order: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketOrders)
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("anchor: next sequence: %w", err)
		}
		key := orderPrefix(o.ContentID)
		key = binary.BigEndian.AppendUint64(key, seq)
		return b.Put(key, buf.Bytes())
	})
}

func (s *BoltOrderStore) Latest(id storage.ContentID) (*StorageOrder, error) {
	revs, err := s.History(id)
	if err != nil {
		return nil, err
	}
	o := revs[len(revs)-1]
	return &o, nil
}

func (s *BoltOrderStore) History(id storage.ContentID) ([]StorageOrder, error) {
	prefix := orderPrefix(id)
	var revs []StorageOrder
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketOrders).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			// Guard against an id that is itself a prefix of another id.
			if len(k) != len(prefix)+8 {
				continue
			}
			var o StorageOrder
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&o); err != nil {
				return fmt.Errorf("anchor: decode order: %w", err)
			}
			revs = append(revs, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(revs) == 0 {
		return nil, ErrOrderNotFound
	}
	return revs, nil
}

package memory

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketMemories = []byte("memories")

// BoltStore keeps memories in a bbolt file, one sub-bucket per owner keyed
// by insertion sequence. The file is opened per call so other processes can
// share it.
type BoltStore struct {
	path string
	mu   sync.Mutex
}

var _ VectorStore = (*BoltStore)(nil)

func NewBoltStore(path string) (*BoltStore, error) {
	s := &BoltStore{path: path}
	err := s.update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketMemories)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) open() (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, err
	}
	return bolt.Open(s.path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
}

func (s *BoltStore) update(fn func(*bolt.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.open()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return db.Update(fn)
}

func (s *BoltStore) view(fn func(*bolt.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.open()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return db.View(fn)
}

func (s *BoltStore) Save(_ context.Context, m Memory) (Memory, error) {
	err := s.update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(bucketMemories)
		if err != nil {
			return err
		}
		b, err := root.CreateBucketIfNotExists([]byte(m.OwnerID))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		enc, err := json.Marshal(m)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), enc)
	})
	return m, err
}

func (s *BoltStore) Recent(_ context.Context, owner string, limit int) ([]Memory, error) {
	out := []Memory{}
	err := s.view(func(tx *bolt.Tx) error {
		b := ownerBucket(tx, owner)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			var m Memory
			// malformed rows are skipped
			if json.Unmarshal(v, &m) == nil {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) Nearest(_ context.Context, owner string, vector []float32, k int) ([]Memory, error) {
	var rows []Memory
	err := s.view(func(tx *bolt.Tx) error {
		b := ownerBucket(tx, owner)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var m Memory
			if json.Unmarshal(v, &m) == nil {
				rows = append(rows, m)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return nearest(rows, vector, k), nil
}

func ownerBucket(tx *bolt.Tx, owner string) *bolt.Bucket {
	root := tx.Bucket(bucketMemories)
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(owner))
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

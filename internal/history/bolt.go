package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketSessions = []byte("sessions")

// BoltStore appends sessions to a bbolt file, one sub-bucket per owner. The
// file is opened per call so the daemon and the HTTP server can share it.
type BoltStore struct {
	path string
	mu   sync.Mutex
}

var _ Store = (*BoltStore)(nil)

func NewBoltStore(path string) (*BoltStore, error) {
	s := &BoltStore{path: path}
	err := s.with(func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketSessions)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) with(fn func(*bolt.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return fn(db)
}

func (s *BoltStore) Create(_ context.Context, sess *Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	enc, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	return s.with(func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			root, err := tx.CreateBucketIfNotExists(bucketSessions)
			if err != nil {
				return err
			}
			b, err := root.CreateBucketIfNotExists([]byte(sess.OwnerID))
			if err != nil {
				return err
			}
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, seq)
			return b.Put(key, enc)
		})
	})
}

func (s *BoltStore) ListByOwner(_ context.Context, owner string) ([]Session, error) {
	out := []Session{}
	err := s.with(func(db *bolt.DB) error {
		return db.View(func(tx *bolt.Tx) error {
			root := tx.Bucket(bucketSessions)
			if root == nil {
				return nil
			}
			b := root.Bucket([]byte(owner))
			if b == nil {
				return nil
			}
			return b.ForEach(func(_, v []byte) error {
				var sess Session
				// skip malformed
				if json.Unmarshal(v, &sess) == nil {
					out = append(out, sess)
				}
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

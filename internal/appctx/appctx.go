// Package appctx is the daemon's application context: who the candidate is,
// what they are preparing for, and the latest history and memory snapshots.
// It is loaded at start and saved when a session ends.
package appctx

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"rehearse/internal/history"
	"rehearse/internal/memory"
)

var (
	bucketProfile  = []byte("profile")
	bucketHistory  = []byte("history")
	bucketMemories = []byte("memories")
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

type Profile struct {
	OwnerID        string `json:"owner"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	Resume         string `json:"resume"`
	JobDescription string `json:"job_description"`
	Theme          Theme  `json:"theme"`
}

type State struct {
	Profile  Profile
	History  []history.Session // newest first
	Memories []memory.Memory   // newest first
	Saved    time.Time
}

func open(path string) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
}

// Load reads the state at path. A missing file yields an empty state with
// the light theme. Malformed entries are skipped.
func Load(path string) (State, error) {
	st := State{Profile: Profile{Theme: ThemeLight}}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return st, nil
	}

	db, err := open(path)
	if err != nil {
		return st, err
	}
	defer func() { _ = db.Close() }()

	err = db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bucketProfile); b != nil {
			if v := b.Get([]byte("profile")); len(v) > 0 {
				_ = json.Unmarshal(v, &st.Profile)
			}
			if v := b.Get([]byte("saved")); len(v) > 0 {
				_ = st.Saved.UnmarshalText(v)
			}
		}
		if b := tx.Bucket(bucketHistory); b != nil {
			_ = b.ForEach(func(_, v []byte) error {
				var s history.Session
				if json.Unmarshal(v, &s) == nil {
					st.History = append(st.History, s)
				}
				return nil
			})
		}
		if b := tx.Bucket(bucketMemories); b != nil {
			_ = b.ForEach(func(_, v []byte) error {
				var m memory.Memory
				if json.Unmarshal(v, &m) == nil {
					st.Memories = append(st.Memories, m)
				}
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return st, err
	}

	if st.Profile.Theme == "" {
		st.Profile.Theme = ThemeLight
	}
	sort.SliceStable(st.History, func(i, j int) bool { return st.History[i].CreatedAt.After(st.History[j].CreatedAt) })
	sort.SliceStable(st.Memories, func(i, j int) bool { return st.Memories[i].CreatedAt.After(st.Memories[j].CreatedAt) })
	return st, nil
}

// Save replaces the stored state with st.
func Save(path string, st State) error {
	db, err := open(path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if st.Saved.IsZero() {
		st.Saved = time.Now()
	}

	return db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketProfile, bucketHistory, bucketMemories} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
		}

		pb, err := tx.CreateBucket(bucketProfile)
		if err != nil {
			return err
		}
		enc, err := json.Marshal(st.Profile)
		if err != nil {
			return err
		}
		if err := pb.Put([]byte("profile"), enc); err != nil {
			return err
		}
		saved, _ := st.Saved.MarshalText()
		if err := pb.Put([]byte("saved"), saved); err != nil {
			return err
		}

		hb, err := tx.CreateBucket(bucketHistory)
		if err != nil {
			return err
		}
		for _, s := range st.History {
			if err := putJSON(hb, s.ID, s); err != nil {
				return err
			}
		}

		mb, err := tx.CreateBucket(bucketMemories)
		if err != nil {
			return err
		}
		for _, m := range st.Memories {
			if err := putJSON(mb, m.ID, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func putJSON(b *bolt.Bucket, key string, v any) error {
	enc, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), enc)
}

// Package history stores the scored record of each finished session.
package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/datatypes"

	"rehearse/internal/interview"
)

// Session is written once at session end and never updated.
type Session struct {
	ID         string                                 `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID    string                                 `gorm:"column:user_id;index;not null" json:"userId"`
	Role       string                                 `gorm:"not null" json:"role"`
	Messages   datatypes.JSONSlice[interview.Message] `gorm:"type:jsonb" json:"messages"`
	Score      int                                    `gorm:"default:0" json:"score"`
	Summary    string                                 `json:"summary"`
	Strengths  datatypes.JSONSlice[string]            `gorm:"type:jsonb" json:"strengths"`
	Weaknesses datatypes.JSONSlice[string]            `gorm:"type:jsonb" json:"weaknesses"`
	CreatedAt  time.Time                              `gorm:"index" json:"createdAt"`
}

func (Session) TableName() string { return "sessions" }

type Store interface {
	Create(ctx context.Context, s *Session) error
	// ListByOwner returns every session of owner, newest first.
	ListByOwner(ctx context.Context, owner string) ([]Session, error)
}

// LocalStore keeps sessions in process memory. Tests use it; the daemon
// persists through BoltStore.
type LocalStore struct {
	mu   sync.RWMutex
	rows []Session
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore() *LocalStore { return &LocalStore{} }

func (s *LocalStore) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	s.rows = append(s.rows, *sess)
	return nil
}

func (s *LocalStore) ListByOwner(_ context.Context, owner string) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Session{}
	for _, r := range s.rows {
		if r.OwnerID == owner {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

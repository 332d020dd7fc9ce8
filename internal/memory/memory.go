// Package memory keeps the facts the interviewer learned about a candidate and
// retrieves them for the next turn, either by recency or by similarity.
package memory

import (
	"context"
	"errors"
	"time"

	"rehearse/internal/interview"
)

// Memory is an append-only note about one owner.
type Memory struct {
	ID        string             `json:"id"`
	OwnerID   string             `json:"owner"`
	Text      string             `json:"text"`
	Category  interview.Category `json:"type"`
	Embedding []float32          `json:"embedding,omitempty"`
	CreatedAt time.Time          `json:"created"`
}

var (
	ErrStrategy = errors.New("unknown retrieval strategy")
	ErrNoVector = errors.New("store does not support similarity search")
)

// Store persists memories and lists the latest ones per owner, newest first.
type Store interface {
	Save(ctx context.Context, m Memory) (Memory, error)
	Recent(ctx context.Context, owner string, limit int) ([]Memory, error)
}

// VectorStore additionally answers nearest-neighbour queries for an owner.
type VectorStore interface {
	Store
	Nearest(ctx context.Context, owner string, vector []float32, k int) ([]Memory, error)
}

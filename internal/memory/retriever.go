package memory

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"rehearse/internal/embedding"
	"rehearse/internal/interview"
)

type Strategy string

const (
	StrategyRecency    Strategy = "recency"
	StrategySimilarity Strategy = "similarity"
)

const (
	DefaultLimit = 10
	// EmptyBlock is rendered into the prompt when the owner has no memories.
	EmptyBlock = "No prior memories."
)

type Config struct {
	Strategy Strategy
	Limit    int
}

// Retriever reads and writes memories with one strategy per deployment.
type Retriever struct {
	store    Store
	vectors  VectorStore
	embedder embedding.Embedder
	cfg      Config
	now      func() time.Time
}

// NewRetriever validates that the store and embedder fit the strategy.
func NewRetriever(store Store, embedder embedding.Embedder, cfg Config) (*Retriever, error) {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyRecency
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}

	r := &Retriever{store: store, embedder: embedder, cfg: cfg, now: time.Now}

	switch cfg.Strategy {
	case StrategyRecency:
	case StrategySimilarity:
		vs, ok := store.(VectorStore)
		if !ok {
			return nil, ErrNoVector
		}
		if embedder == nil {
			return nil, fmt.Errorf("similarity retrieval needs an embedder")
		}
		r.vectors = vs
	default:
		return nil, fmt.Errorf("%w: %q", ErrStrategy, cfg.Strategy)
	}

	return r, nil
}

func (r *Retriever) Strategy() Strategy { return r.cfg.Strategy }

// Context returns the memories to inject for the next model call. query is
// the latest user utterance; an empty query falls back to recency.
func (r *Retriever) Context(ctx context.Context, owner, query string) ([]Memory, error) {
	if owner == "" {
		return nil, nil
	}

	if r.cfg.Strategy == StrategySimilarity && strings.TrimSpace(query) != "" {
		vec, err := r.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		mems, err := r.vectors.Nearest(ctx, owner, vec, r.cfg.Limit)
		if err != nil {
			return nil, fmt.Errorf("nearest memories: %w", err)
		}
		return mems, nil
	}

	mems, err := r.store.Recent(ctx, owner, r.cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("recent memories: %w", err)
	}
	return mems, nil
}

// Remember persists the note the model attached to its reply. It is a no-op
// when there is no note or no owner.
func (r *Retriever) Remember(ctx context.Context, owner string, note *interview.Note) (*Memory, error) {
	if note == nil || owner == "" {
		return nil, nil
	}

	m := Memory{
		ID:        uuid.NewString(),
		OwnerID:   owner,
		Text:      note.Text,
		Category:  note.Type,
		CreatedAt: r.now(),
	}

	if r.cfg.Strategy == StrategySimilarity {
		vec, err := r.embedder.Embed(ctx, note.Text)
		if err != nil {
			return nil, fmt.Errorf("embed memory: %w", err)
		}
		m.Embedding = vec
	}

	saved, err := r.store.Save(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("save memory: %w", err)
	}

	log.Debug("Memory saved", "owner", owner, "type", saved.Category)
	return &saved, nil
}

// FormatBlock renders memories as "[TYPE] text" lines.
func FormatBlock(mems []Memory) string {
	if len(mems) == 0 {
		return EmptyBlock
	}
	lines := make([]string, 0, len(mems))
	for _, m := range mems {
		lines = append(lines, fmt.Sprintf("[%s] %s", strings.ToUpper(string(m.Category)), m.Text))
	}
	return strings.Join(lines, "\n")
}

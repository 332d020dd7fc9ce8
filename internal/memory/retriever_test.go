package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rehearse/internal/interview"
)

// keywordEmbedder maps text onto a 3-dim space by keyword, enough to make
// nearest-neighbour ordering predictable.
type keywordEmbedder struct {
	calls int
	err   error
}

func (e *keywordEmbedder) Model() string  { return "keyword" }
func (e *keywordEmbedder) Dimension() int { return 3 }

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	text = strings.ToLower(text)
	switch {
	case strings.Contains(text, "react"):
		return []float32{1, 0, 0}, nil
	case strings.Contains(text, "sql"):
		return []float32{0, 1, 0}, nil
	default:
		return []float32{0, 0, 1}, nil
	}
}

// countingStore wraps LocalStore and counts writes.
type countingStore struct {
	*LocalStore
	saves int
}

func (s *countingStore) Save(ctx context.Context, m Memory) (Memory, error) {
	s.saves++
	return s.LocalStore.Save(ctx, m)
}

func TestRememberSkipsWithoutNoteOrOwner(t *testing.T) {
	store := &countingStore{LocalStore: NewLocalStore()}
	r, err := NewRetriever(store, nil, Config{})
	require.NoError(t, err)

	m, err := r.Remember(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = r.Remember(context.Background(), "", &interview.Note{Text: "Go", Type: interview.CategorySkill})
	require.NoError(t, err)
	assert.Nil(t, m)

	assert.Equal(t, 0, store.saves)

	m, err = r.Remember(context.Background(), "u1", &interview.Note{Text: "Go", Type: interview.CategorySkill})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, "u1", m.OwnerID)
	assert.Empty(t, m.Embedding)
}

func TestRecencyContextNewestFirst(t *testing.T) {
	store := NewLocalStore()
	r, err := NewRetriever(store, nil, Config{Limit: 10})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 12; i++ {
		_, err := r.Remember(ctx, "u1", &interview.Note{Text: fmt.Sprintf("fact %d", i), Type: interview.CategoryFact})
		require.NoError(t, err)
	}
	_, err = r.Remember(ctx, "u2", &interview.Note{Text: "other", Type: interview.CategoryFact})
	require.NoError(t, err)

	mems, err := r.Context(ctx, "u1", "anything")
	require.NoError(t, err)
	require.Len(t, mems, 10)
	assert.Equal(t, "fact 11", mems[0].Text)
	for _, m := range mems {
		assert.Equal(t, "u1", m.OwnerID)
	}
}

func TestSimilarityContext(t *testing.T) {
	store := NewLocalStore()
	emb := &keywordEmbedder{}
	r, err := NewRetriever(store, emb, Config{Strategy: StrategySimilarity, Limit: 1})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = r.Remember(ctx, "u1", &interview.Note{Text: "Three years of React", Type: interview.CategorySkill})
	require.NoError(t, err)
	_, err = r.Remember(ctx, "u1", &interview.Note{Text: "Struggles with SQL joins", Type: interview.CategoryWeakness})
	require.NoError(t, err)
	assert.Equal(t, 2, emb.calls)

	mems, err := r.Context(ctx, "u1", "I used React for three years")
	require.NoError(t, err)
	require.Len(t, mems, 1)
	assert.Equal(t, "Three years of React", mems[0].Text)

	// empty query falls back to recency
	mems, err = r.Context(ctx, "u1", "  ")
	require.NoError(t, err)
	require.Len(t, mems, 1)
	assert.Equal(t, "Struggles with SQL joins", mems[0].Text)
}

func TestSimilarityEmbedFailure(t *testing.T) {
	emb := &keywordEmbedder{err: errors.New("provider down")}
	r, err := NewRetriever(NewLocalStore(), emb, Config{Strategy: StrategySimilarity})
	require.NoError(t, err)

	_, err = r.Context(context.Background(), "u1", "hello")
	assert.Error(t, err)

	_, err = r.Remember(context.Background(), "u1", &interview.Note{Text: "x", Type: interview.CategoryFact})
	assert.Error(t, err)
}

func TestNewRetrieverRejects(t *testing.T) {
	_, err := NewRetriever(NewLocalStore(), nil, Config{Strategy: "bm25"})
	assert.True(t, errors.Is(err, ErrStrategy))

	_, err = NewRetriever(&RedisStore{}, &keywordEmbedder{}, Config{Strategy: StrategySimilarity})
	assert.True(t, errors.Is(err, ErrNoVector))

	_, err = NewRetriever(NewLocalStore(), nil, Config{Strategy: StrategySimilarity})
	assert.Error(t, err)
}

func TestFormatBlock(t *testing.T) {
	assert.Equal(t, EmptyBlock, FormatBlock(nil))

	got := FormatBlock([]Memory{
		{Text: "Three years of React", Category: interview.CategorySkill, CreatedAt: time.Now()},
		{Text: "Prefers remote work", Category: interview.CategoryPreference},
	})
	assert.Equal(t, "[SKILL] Three years of React\n[PREFERENCE] Prefers remote work", got)
}

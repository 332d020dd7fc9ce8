package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rehearse/internal/interview"
)

func TestLocalStoreListNewestFirst(t *testing.T) {
	s := NewLocalStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Create(ctx, &Session{ID: "a", OwnerID: "u1", Role: "SWE", CreatedAt: base}))
	require.NoError(t, s.Create(ctx, &Session{ID: "b", OwnerID: "u1", Role: "SWE", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, s.Create(ctx, &Session{ID: "c", OwnerID: "u2", Role: "PM", CreatedAt: base.Add(2 * time.Hour)}))

	got, err := s.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)

	got, err = s.ListByOwner(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBoltStoreAppendsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.db")
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	first, err := NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Create(ctx, &Session{
		ID:        "a",
		OwnerID:   "u1",
		Role:      "SWE",
		Messages:  []interview.Message{{Role: interview.RoleUser, Content: "Hi"}},
		Score:     40,
		Strengths: []string{"Clear", "Calm"},
		CreatedAt: base,
	}))

	second, err := NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, second.Create(ctx, &Session{ID: "b", OwnerID: "u1", Role: "SWE", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, second.Create(ctx, &Session{ID: "c", OwnerID: "u2", Role: "PM", CreatedAt: base.Add(2 * time.Hour)}))

	got, err := second.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, 40, got[1].Score)
	assert.Equal(t, "Hi", got[1].Messages[0].Content)
	assert.Equal(t, []string{"Clear", "Calm"}, []string(got[1].Strengths))

	got, err = second.ListByOwner(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

//go:build integration

package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"rehearse/internal/interview"
)

func startPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "rehearse",
				"POSTGRES_PASSWORD": "rehearse",
				"POSTGRES_DB":       "rehearse",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432")
	require.NoError(t, err)

	store, err := NewPostgresStore(PostgresConfig{
		DSN: fmt.Sprintf("host=%s port=%s user=rehearse password=rehearse dbname=rehearse sslmode=disable", host, port.Port()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgresCreateAndList(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()

	first := &Session{
		ID:         uuid.NewString(),
		OwnerID:    "u1",
		Role:       "Software Engineer",
		Messages:   []interview.Message{{Role: interview.RoleUser, Content: "I used React for three years"}},
		Score:      18,
		Summary:    "Short session.",
		Strengths:  []string{"React", "Clarity"},
		Weaknesses: []string{"Depth", "Length"},
		CreatedAt:  time.Now().Add(-time.Hour),
	}
	second := &Session{ID: uuid.NewString(), OwnerID: "u1", Role: "Software Engineer", Summary: "Summary unavailable"}

	require.NoError(t, store.Create(ctx, first))
	require.NoError(t, store.Create(ctx, second))

	got, err := store.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)
	require.Len(t, got[1].Messages, 1)
	assert.Equal(t, "I used React for three years", got[1].Messages[0].Content)
	assert.Equal(t, []string{"React", "Clarity"}, []string(got[1].Strengths))
}

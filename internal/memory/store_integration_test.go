//go:build integration

package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"rehearse/internal/interview"
)

var (
	testSurreal *SurrealStore
	testRedis   *RedisStore
)

const testDimension = 3

func TestMain(m *testing.M) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	surreal, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start Redis container: %v", err)
	}

	surrealURL := endpoint(ctx, surreal, "8000", "ws")
	testSurreal, err = NewSurrealStore(ctx, SurrealConfig{
		URL:       surrealURL + "/rpc",
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
		Dimension: testDimension,
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to SurrealDB: %v", err)
	}
	if err := testSurreal.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	testRedis, err = NewRedisStore(ctx, endpoint(ctx, redisC, "6379", "redis")+"/0")
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	code := m.Run()

	_ = testSurreal.Close(ctx)
	_ = testRedis.Close()
	_ = surreal.Terminate(ctx)
	_ = redisC.Terminate(ctx)

	os.Exit(code)
}

func endpoint(ctx context.Context, c testcontainers.Container, port, scheme string) string {
	host, err := c.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}
	return fmt.Sprintf("%s://%s:%s", scheme, host, mapped.Port())
}

func TestSurrealRecent(t *testing.T) {
	ctx := context.Background()
	owner := uuid.NewString()

	for i := 0; i < 3; i++ {
		_, err := testSurreal.Save(ctx, Memory{
			ID:       uuid.NewString(),
			OwnerID:  owner,
			Text:     fmt.Sprintf("fact %d", i),
			Category: interview.CategoryFact,
		})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	mems, err := testSurreal.Recent(ctx, owner, 2)
	require.NoError(t, err)
	require.Len(t, mems, 2)
	assert.Equal(t, "fact 2", mems[0].Text)
	assert.Equal(t, "fact 1", mems[1].Text)
}

func TestSurrealNearest(t *testing.T) {
	ctx := context.Background()
	owner := uuid.NewString()

	for _, m := range []Memory{
		{Text: "React", Category: interview.CategorySkill, Embedding: []float32{1, 0, 0}},
		{Text: "SQL", Category: interview.CategoryWeakness, Embedding: []float32{0, 1, 0}},
	} {
		m.ID = uuid.NewString()
		m.OwnerID = owner
		_, err := testSurreal.Save(ctx, m)
		require.NoError(t, err)
	}
	_, err := testSurreal.Save(ctx, Memory{
		ID: uuid.NewString(), OwnerID: "someone-else", Text: "React too",
		Category: interview.CategorySkill, Embedding: []float32{1, 0, 0},
	})
	require.NoError(t, err)

	mems, err := testSurreal.Nearest(ctx, owner, []float32{0.9, 0.1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, mems, 1)
	assert.Equal(t, "React", mems[0].Text)
	assert.Equal(t, owner, mems[0].OwnerID)
}

func TestRedisRecent(t *testing.T) {
	ctx := context.Background()
	owner := uuid.NewString()

	for i := 0; i < 3; i++ {
		_, err := testRedis.Save(ctx, Memory{ID: uuid.NewString(), OwnerID: owner, Text: fmt.Sprintf("fact %d", i), Category: interview.CategoryFact})
		require.NoError(t, err)
	}

	mems, err := testRedis.Recent(ctx, owner, 2)
	require.NoError(t, err)
	require.Len(t, mems, 2)
	assert.Equal(t, "fact 2", mems[0].Text)
}

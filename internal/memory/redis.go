package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each owner's memories in a list, newest at the head. It
// supports recency retrieval only.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "memory:"}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(owner string) string {
	return s.prefix + owner
}

func (s *RedisStore) Save(ctx context.Context, m Memory) (Memory, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return Memory{}, fmt.Errorf("marshal memory: %w", err)
	}
	if err := s.client.LPush(ctx, s.key(m.OwnerID), data).Err(); err != nil {
		return Memory{}, fmt.Errorf("push memory: %w", err)
	}
	return m, nil
}

func (s *RedisStore) Recent(ctx context.Context, owner string, limit int) ([]Memory, error) {
	raw, err := s.client.LRange(ctx, s.key(owner), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("range memories: %w", err)
	}

	out := make([]Memory, 0, len(raw))
	for _, item := range raw {
		var m Memory
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			// skip malformed entries
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

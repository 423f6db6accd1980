package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/slotter-org/cocreation-backend/internal/logger"
)

// RedisStore keeps the current session id under a single redis key.
type RedisStore struct {
	log    *logger.Logger
	client *redis.Client
	key    string
}

func NewRedisStore(log *logger.Logger, address, password, key string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{
		log:    log.With("component", "RedisStore"),
		client: rdb,
		key:    key,
	}, nil
}

func (s *RedisStore) Load(ctx context.Context) (string, error) {
	id, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string) error {
	if err := s.client.Set(ctx, s.key, sessionID, 0).Err(); err != nil {
		s.log.Warn("Failed to save session id", "key", s.key, "error", err)
		return err
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

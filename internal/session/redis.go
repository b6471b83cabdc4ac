package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "market:session:"

// RedisStore keeps one JSON document per chat in Redis
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a Redis-backed store; ttl 0 keeps sessions forever
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// NewRedisClient connects to Redis and checks the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", ErrStoreUnavailable, addr, err)
	}
	return rdb, nil
}

func sessionKey(chatID int64) string {
	return keyPrefix + strconv.FormatInt(chatID, 10)
}

func (r *RedisStore) Load(ctx context.Context, chatID int64) (*Session, error) {
	data, err := r.rdb.Get(ctx, sessionKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load chat %d: %v", ErrStoreUnavailable, chatID, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session of chat %d: %w", chatID, err)
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, chatID int64, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session of chat %d: %w", chatID, err)
	}
	if err := r.rdb.Set(ctx, sessionKey(chatID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: save chat %d: %v", ErrStoreUnavailable, chatID, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, chatID int64) error {
	if err := r.rdb.Del(ctx, sessionKey(chatID)).Err(); err != nil {
		return fmt.Errorf("%w: delete chat %d: %v", ErrStoreUnavailable, chatID, err)
	}
	return nil
}

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/friendsync/internal/models"
)

const redisKeyPrefix = "friendsync:friend:"

// RedisStore keeps records in Redis, optionally expiring them after ttl.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore scopes keys under namespace, typically the viewer's user id, since
// Friend records are per-viewer.
func NewRedisStore(client redis.UniversalClient, namespace string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: redisKeyPrefix + namespace + ":",
		ttl:    ttl,
	}
}

func (s *RedisStore) ReadAll(ctx context.Context, keys []models.ContactKey) (map[models.ContactKey]models.Friend, error) {
	out := make(map[models.ContactKey]models.Friend, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	redisKeys := make([]string, len(keys))
	for i, key := range keys {
		redisKeys[i] = s.prefix + string(key)
	}

	values, err := s.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading cached friends: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		f, err := decodeFriend(keys[i], []byte(raw))
		if err != nil {
			return nil, err
		}
		out[keys[i]] = f
	}
	return out, nil
}

func (s *RedisStore) WriteAll(ctx context.Context, entries map[models.ContactKey]models.Friend) error {
	if len(entries) == 0 {
		return nil
	}

	encoded := make(map[string][]byte, len(entries))
	for key, f := range entries {
		f.ContactKey = key
		data, err := encodeFriend(f)
		if err != nil {
			return err
		}
		encoded[s.prefix+string(key)] = data
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, data := range encoded {
			pipe.Set(ctx, k, data, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing cached friends: %w", err)
	}
	return nil
}

package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each call under its own key plus a sorted-set index by
// creation time. Suitable for distributed deployments.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	owned     bool
}

// NewRedisStore connects to the configured server and pings it.
func NewRedisStore(cfg RedisStoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := NewRedisStoreWithClient(client, cfg.KeyPrefix, cfg.TTL)
	s.owned = true
	return s, nil
}

// NewRedisStoreWithClient uses an existing client. Close leaves it open.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "guardflow:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix + "call:", ttl: ttl}
}

func (s *RedisStore) dataKey(id string) string { return s.keyPrefix + "data:" + id }

func (s *RedisStore) indexKey() string { return s.keyPrefix + "all" }

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, call *Call) error {
	if call == nil || call.ID == "" {
		return fmt.Errorf("save call: missing id")
	}
	data, err := encode(call)
	if err != nil {
		return fmt.Errorf("failed to marshal call: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.dataKey(call.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(call.CreatedAt.UnixNano()), Member: call.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save call: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (*Call, error) {
	data, err := s.client.Get(ctx, s.dataKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call: %w", err)
	}
	return decode(data)
}

// List implements Store. Index entries whose data expired are pruned lazily.
func (s *RedisStore) List(ctx context.Context, opts ListOptions) ([]*Call, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	if len(ids) == 0 {
		return []*Call{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.dataKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load calls: %w", err)
	}

	var out []*Call
	var stale []any
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		c, err := decode([]byte(str))
		if err != nil {
			return nil, fmt.Errorf("decode call %s: %w", ids[i], err)
		}
		if opts.match(c) {
			out = append(out, c)
		}
	}
	if len(stale) > 0 {
		s.client.ZRem(ctx, s.indexKey(), stale...)
	}
	return opts.page(out), nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.dataKey(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// Close implements Store.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

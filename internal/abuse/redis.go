package abuse

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisRateStore keeps the sliding window in a Redis sorted set scored
// by unix millis, so multiple instances share one rate-limit view.
type RedisRateStore struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisRateStore(url string, limit int, window time.Duration) (*RedisRateStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisRateStore{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
	}, nil
}

func (s *RedisRateStore) Allow(ctx context.Context, key string, now time.Time) (bool, error) {
	rkey := s.prefix + key
	cutoff := now.Add(-s.window).UnixMilli()

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, rkey, "0", fmt.Sprintf("%d", cutoff))
	card := pipe.ZCard(ctx, rkey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	if int(card.Val()) >= s.limit {
		return false, nil
	}

	pipe = s.client.TxPipeline()
	pipe.ZAdd(ctx, rkey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: uuid.New().String(),
	})
	pipe.Expire(ctx, rkey, s.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit record failed: %w", err)
	}

	return true, nil
}

func (s *RedisRateStore) Close() error {
	return s.client.Close()
}

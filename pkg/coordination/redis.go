package coordination

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisCoordinator shares the exclusion protocol across processes: lock
// flags as SETNX keys, fair queues as lists, slot counters as integers.
type RedisCoordinator struct {
	client       redis.UniversalClient
	prefix       string
	capacity     int
	pollInterval time.Duration
}

// NewRedisCoordinator connects to redis at the given URL. capacity <= 0
// selects the default slot capacity per level.
func NewRedisCoordinator(ctx context.Context, redisURL string, capacity int) (*RedisCoordinator, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	if capacity <= 0 {
		capacity = defaultCapacity
	}

	return &RedisCoordinator{
		client:       client,
		prefix:       "chronoflow",
		capacity:     capacity,
		pollInterval: defaultPollInterval,
	}, nil
}

func (r *RedisCoordinator) lockKey(level Level) string {
	return r.prefix + ":lock:" + string(level)
}

func (r *RedisCoordinator) queueKey(level Level) string {
	return r.prefix + ":queue:" + string(level)
}

func (r *RedisCoordinator) executingKey(level Level) string {
	return r.prefix + ":executing:" + string(level)
}

func (r *RedisCoordinator) AnnounceLock(ctx context.Context, level Level) error {
	set, err := r.client.SetNX(ctx, r.lockKey(level), "1", 0).Result()
	if err != nil {
		return fmt.Errorf("failed to announce lock at level %s: %w", level, err)
	}

	if !set {
		return ErrLockHeld
	}

	return nil
}

func (r *RedisCoordinator) IsAnnounced(ctx context.Context, level Level) (bool, error) {
	count, err := r.client.Exists(ctx, r.lockKey(level)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check lock at level %s: %w", level, err)
	}

	return count > 0, nil
}

func (r *RedisCoordinator) RemoveLockFlag(ctx context.Context, level Level) error {
	if err := r.client.Del(ctx, r.lockKey(level)).Err(); err != nil {
		return fmt.Errorf("failed to remove lock flag at level %s: %w", level, err)
	}

	return nil
}

func (r *RedisCoordinator) AddToQueue(ctx context.Context, level Level, id int64) error {
	member := strconv.FormatInt(id, 10)

	position, err := r.client.LPos(ctx, r.queueKey(level), member, redis.LPosArgs{}).Result()
	if err == nil && position >= 0 {
		return nil
	}

	if err := r.client.RPush(ctx, r.queueKey(level), member).Err(); err != nil {
		return fmt.Errorf("failed to enqueue %d at level %s: %w", id, level, err)
	}

	return nil
}

func (r *RedisCoordinator) CheckQueueFirst(ctx context.Context, level Level, id int64) (bool, error) {
	first, err := r.client.LIndex(ctx, r.queueKey(level), 0).Result()
	if err == redis.Nil {
		return false, ErrNotQueued
	}

	if err != nil {
		return false, fmt.Errorf("failed to read queue head at level %s: %w", level, err)
	}

	return first == strconv.FormatInt(id, 10), nil
}

func (r *RedisCoordinator) RemoveFromQueue(ctx context.Context, level Level, id int64) error {
	err := r.client.LRem(ctx, r.queueKey(level), 1, strconv.FormatInt(id, 10)).Err()
	if err != nil {
		return fmt.Errorf("failed to dequeue %d at level %s: %w", id, level, err)
	}

	return nil
}

// IncreaseNumExecuting acquires an execution slot, polling while the pool is
// saturated. The counter is incremented optimistically and rolled back when
// over capacity, so a burst of acquirers settles without a server-side lock.
func (r *RedisCoordinator) IncreaseNumExecuting(ctx context.Context, level Level, _ int64, exclusive bool) error {
	key := r.executingKey(level)

	for {
		count, err := r.client.Incr(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to increment executing count at level %s: %w", level, err)
		}

		if exclusive || count <= int64(r.capacity) {
			return nil
		}

		if err := r.client.Decr(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to roll back executing count at level %s: %w", level, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.pollInterval):
		}
	}
}

func (r *RedisCoordinator) DecreaseNumExecuting(ctx context.Context, level Level, _ bool) error {
	count, err := r.client.Decr(ctx, r.executingKey(level)).Result()
	if err != nil {
		return fmt.Errorf("failed to decrement executing count at level %s: %w", level, err)
	}

	if count < 0 {
		// A stray release; clamp rather than let the pool over-admit.
		if err := r.client.Incr(ctx, r.executingKey(level)).Err(); err != nil {
			return fmt.Errorf("failed to clamp executing count at level %s: %w", level, err)
		}
	}

	return nil
}

func (r *RedisCoordinator) Close(_ context.Context) error {
	return r.client.Close()
}

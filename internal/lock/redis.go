package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dmarinho/rollback-engine/pkg/models"
)

// ErrAlreadyLocked is returned when a rollback is already in flight for the
// environment.
var ErrAlreadyLocked = errors.New("rollback already in progress for environment")

// releaseScript deletes the lock key only if it still holds our token
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// RedisLock enforces at most one rollback in flight per environment. The
// orchestrator itself performs no locking; this guard is taken by the
// invoking entry point before the engine runs.
type RedisLock struct {
	client *redis.Client
	token  string
}

// NewRedisLock creates a Redis-backed environment lock
func NewRedisLock(url, password string, db int) (*RedisLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Info().
		Str("addr", url).
		Int("db", db).
		Msg("Redis lock connected successfully")

	return &RedisLock{
		client: client,
		token:  uuid.New().String(),
	}, nil
}

// lockKey returns the Redis key guarding an environment
func lockKey(environment models.Environment) string {
	return fmt.Sprintf("rollback:lock:%s", environment)
}

// Acquire takes the environment lock for at most ttl. Returns
// ErrAlreadyLocked when another rollback holds it.
func (l *RedisLock) Acquire(ctx context.Context, environment models.Environment, ttl time.Duration) error {
	ok, err := l.client.SetNX(ctx, lockKey(environment), l.token, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire rollback lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAlreadyLocked, environment)
	}

	log.Info().
		Str("environment", string(environment)).
		Dur("ttl", ttl).
		Msg("Rollback lock acquired")

	return nil
}

// Release frees the environment lock if this instance still holds it
func (l *RedisLock) Release(ctx context.Context, environment models.Environment) error {
	deleted, err := l.client.Eval(ctx, releaseScript, []string{lockKey(environment)}, l.token).Int()
	if err != nil {
		return fmt.Errorf("failed to release rollback lock: %w", err)
	}
	if deleted == 0 {
		log.Warn().
			Str("environment", string(environment)).
			Msg("Rollback lock was not held by this instance")
	}

	return nil
}

// Close closes the Redis connection
func (l *RedisLock) Close() error {
	return l.client.Close()
}

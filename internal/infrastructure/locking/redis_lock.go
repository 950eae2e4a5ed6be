package locking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/catalogsync/backend/internal/domain/syncrun"
)

const defaultKeyPrefix = "sync:lock:"

// releaseScript deletes the key only when this process still holds it,
// so a lock that expired and was re-acquired elsewhere is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLocker implements syncrun.RunLocker on Redis SETNX with a TTL.
// It is the locker for deployments running more than one engine instance;
// single-instance deployments default to the postgres advisory locker.
type RedisRunLocker struct {
	client    *redis.Client
	keyPrefix string

	mu      sync.Mutex
	holders map[string]string
}

// Config holds Redis connection configuration for the locker
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisRunLocker connects a locker to Redis and verifies the connection
func NewRedisRunLocker(cfg Config) (*RedisRunLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisRunLockerWithClient(client, defaultKeyPrefix), nil
}

// NewRedisRunLockerWithClient creates a locker over an existing client
func NewRedisRunLockerWithClient(client *redis.Client, keyPrefix string) *RedisRunLocker {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisRunLocker{
		client:    client,
		keyPrefix: keyPrefix,
		holders:   make(map[string]string),
	}
}

var _ syncrun.RunLocker = (*RedisRunLocker)(nil)

// TryAcquire attempts SETNX on the run key. The TTL bounds how long a
// crashed holder can block the key; a live holder releases explicitly.
func (l *RedisRunLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	holder := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, l.keyPrefix+key, holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock %s: %w", key, err)
	}
	if !acquired {
		return false, nil
	}

	l.mu.Lock()
	l.holders[key] = holder
	l.mu.Unlock()
	return true, nil
}

// Release frees the key if this locker still holds it. Releasing an
// unheld or expired lock is a no-op.
func (l *RedisRunLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	holder, ok := l.holders[key]
	delete(l.holders, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, l.client, []string{l.keyPrefix + key}, holder).Err(); err != nil {
		return fmt.Errorf("redis unlock %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying Redis client
func (l *RedisRunLocker) Close() error {
	return l.client.Close()
}

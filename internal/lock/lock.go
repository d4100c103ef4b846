// Package lock provides short-lived advisory locks keyed by string.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/feeledger/internal/cache"
	"go.uber.org/fx"
)

var Module = fx.Module("lock",
	fx.Provide(New),
)

var (
	ErrEmptyKey   = errors.New("lock key is empty")
	ErrInvalidTTL = errors.New("lock ttl must be positive")
)

type Locker interface {
	// TryLock acquires key for ttl without blocking. ok is false when the
	// key is held by someone else.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release frees key only if token still owns it.
	Release(ctx context.Context, key, token string) error
}

// New returns a Redis-backed locker when a client is available and an
// in-process one otherwise.
func New(client *redis.Client) Locker {
	if client != nil {
		return NewRedisLocker(client)
	}
	return NewLocalLocker()
}

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

type RedisLocker struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client: client,
		script: redis.NewScript(releaseScript),
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := validate(key, ttl); err != nil {
		return "", false, err
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// LocalLocker serializes holders inside one process.
type LocalLocker struct {
	held cache.Cache[string, string]
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: cache.NewTTLCache[string, string]()}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := validate(key, ttl); err != nil {
		return "", false, err
	}
	token := uuid.NewString()
	if !l.held.SetIfAbsent(key, token, ttl) {
		return "", false, nil
	}
	return token, true, nil
}

func (l *LocalLocker) Release(_ context.Context, key, token string) error {
	if cur, ok := l.held.Get(key); ok && cur == token {
		l.held.Delete(key)
	}
	return nil
}

func validate(key string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}

// Package lock выдаёт короткоживущую лидерскую блокировку в Redis, чтобы фоновый проход
// выполняла только одна реплика сервиса.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript удаляет ключ, только если он всё ещё принадлежит владельцу токена.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// ErrNotHeld возвращается Release, если блокировка истекла или перехвачена.
var ErrNotHeld = errors.New("lock is not held")

// Locker: лидерская блокировка с TTL.
type Locker interface {
	// Acquire пытается занять ключ на ttl; false, если его держит другой владелец.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error)
}

// Lease: занятая блокировка.
type Lease interface {
	Release(ctx context.Context) error
}

// RedisLocker реализует Locker через SET NX PX и токен владельца.
type RedisLocker struct {
	client   redis.Cmdable
	prefix   string
	newToken func() string
}

// Option настраивает RedisLocker.
type Option func(*RedisLocker)

// WithPrefix задаёт префикс ключей.
func WithPrefix(prefix string) Option {
	return func(l *RedisLocker) {
		l.prefix = prefix
	}
}

// WithTokenGenerator подменяет генератор токенов владельца.
func WithTokenGenerator(fn func() string) Option {
	return func(l *RedisLocker) {
		l.newToken = fn
	}
}

// NewRedisLocker создаёт блокировку поверх клиента Redis.
func NewRedisLocker(client redis.Cmdable, options ...Option) *RedisLocker {
	l := &RedisLocker{
		client:   client,
		prefix:   "resale:lock:",
		newToken: uuid.NewString,
	}
	for _, option := range options {
		option(l)
	}
	return l
}

// Acquire занимает ключ prefix+key на ttl.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	token := l.newToken()
	fullKey := l.prefix + key

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{client: l.client, key: fullKey, token: token}, true, nil
}

type redisLease struct {
	client redis.Cmdable
	key    string
	token  string
}

func (r *redisLease) Release(ctx context.Context) error {
	deleted, err := r.client.Eval(ctx, releaseScript, []string{r.key}, r.token).Int64()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", r.key, err)
	}
	if deleted == 0 {
		return ErrNotHeld
	}
	return nil
}

// NewRedisClient создаёт клиента и проверяет соединение ping-ом с таймаутом.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

var _ Locker = (*RedisLocker)(nil)

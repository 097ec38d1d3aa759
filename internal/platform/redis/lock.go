package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

var (
	// ErrLockHeld is returned by Acquire when another owner holds the key.
	ErrLockHeld = errors.New("lock is held by another owner")

	// ErrLeaseLost is returned when a lease expired or was taken over
	// before it could be released or extended.
	ErrLeaseLost = errors.New("lease is no longer held")
)

// releaseScript deletes the key only if it still carries our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the TTL only if the key still carries our token.
var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker hands out TTL leases on Redis keys. A lease expires on its own if
// its owner dies, so a crashed process never blocks later runs for longer
// than the TTL.
type Locker struct {
	client goredis.Cmdable
	logger *slog.Logger
}

// NewLocker creates a Locker over client.
func NewLocker(client goredis.Cmdable, logger *slog.Logger) *Locker {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Locker{
		client: client,
		logger: logger.With(slog.String("component", "locker")),
	}
}

// Lease is a held lock. It is identified by a random token so only its
// owner can release or extend it.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

// Acquire takes key for ttl. It returns ErrLockHeld if the key is taken.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive, got %s", ttl)
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	l.logger.Debug("lock acquired", slog.String("key", key), slog.Duration("ttl", ttl))
	return &Lease{locker: l, key: key, token: token}, nil
}

// Key returns the locked key.
func (le *Lease) Key() string {
	return le.key
}

// Release frees the lease. Releasing a lease that already expired returns
// ErrLeaseLost and leaves any new owner untouched.
func (le *Lease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, le.locker.client, []string{le.key}, le.token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", le.key, err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	le.locker.logger.Debug("lock released", slog.String("key", le.key))
	return nil
}

// Extend pushes the expiry out to ttl from now.
func (le *Lease) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, le.locker.client, []string{le.key}, le.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to extend lock %s: %w", le.key, err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Package lock provides a per-key distributed mutex backed by redis.
//
// The lock key is set with NX and a TTL, so a crashed holder frees the
// cart automatically. Acquisition waits at most Config.Wait before giving
// up with ErrAlreadyLocked; callers never block indefinitely. Acquire
// returns a token scoped to that acquisition, and Release deletes the key
// only while it still carries the same token, so a holder whose TTL
// lapsed cannot free a lock that was re-acquired in the meantime.
// Releasing an expired or absent lock is a no-op rather than an error.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocart/gocart/random"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrAlreadyLocked is returned when the key is held elsewhere and the
// bounded wait ran out.
var ErrAlreadyLocked = errors.New("already locked")

const tokenLength = 22

// releaseScript deletes the key only when it still carries the caller's
// token, so an expired lock re-acquired by someone else is never stolen.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type Config struct {
	TTL           time.Duration
	Wait          time.Duration
	RetryInterval time.Duration
}

// Redis implements the cart.Locker contract.
type Redis struct {
	rdb *redis.Client
	cfg Config
	log logrus.FieldLogger
}

func New(rdb *redis.Client, cfg Config, log logrus.FieldLogger) *Redis {
	return &Redis{rdb: rdb, cfg: cfg, log: log}
}

// Acquire takes the key and returns the token that Release must present
// to free it.
func (l *Redis) Acquire(ctx context.Context, key string) (string, error) {
	token, err := random.StringSecure(tokenLength)
	if err != nil {
		return "", fmt.Errorf("generating lock token: %w", err)
	}

	deadline := time.Now().Add(l.cfg.Wait)
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.cfg.TTL).Result()
		if err != nil {
			return "", fmt.Errorf("acquiring lock %q: %w", key, err)
		}
		if ok {
			l.log.WithField("key", key).Debug("lock acquired")
			return token, nil
		}

		if time.Now().Add(l.cfg.RetryInterval).After(deadline) {
			l.log.WithField("key", key).Info("failed to acquire lock: already held")
			return "", ErrAlreadyLocked
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.cfg.RetryInterval):
		}
	}
}

// Release frees the key if it still carries token. An expired or
// re-acquired lock is left alone.
func (l *Redis) Release(ctx context.Context, key, token string) error {
	if token == "" {
		return nil
	}

	n, err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("releasing lock %q: %w", key, err)
	}
	if n == 0 {
		// TTL expired or another holder took over; nothing to release.
		l.log.WithField("key", key).Info("lock was already gone on release")
		return nil
	}

	l.log.WithField("key", key).Debug("lock released")
	return nil
}

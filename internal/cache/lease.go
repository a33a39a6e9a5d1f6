package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// leaseTTL bounds how long a crashed holder can block the next run.
const leaseTTL = 15 * time.Minute

// releaseScript deletes the lease only when the holder still owns it, so
// an expired lease taken over by another run is never released by the
// original holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLease is a Redis-backed exclusive lease. At most one holder per key
// at a time; acquisition is non-blocking.
type RunLease struct {
	client *redis.Client
	key    string
	token  string
}

// NewRunLease builds a lease for the named run kind ("aggregate",
// "enrich").
func NewRunLease(client *redis.Client, kind string) *RunLease {
	return &RunLease{
		client: client,
		key:    "govsignals:lease:" + kind,
	}
}

// Acquire tries to take the lease. Returns false when another run holds
// it.
func (l *RunLease) Acquire(ctx context.Context) (bool, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, l.key, token, leaseTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release gives the lease back. Safe to call when the lease expired or
// was taken over.
func (l *RunLease) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lease %s: %w", l.key, err)
	}
	return nil
}

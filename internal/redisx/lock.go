package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("redisx: lock acquisition timed out")

// releaseScript deletes the lock only if it still holds our token, so an
// expired-and-reacquired lock is never released by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Mutex is an advisory lock keyed by an arbitrary string. Webhook handling
// uses it to serialize processing per order.
type Mutex struct {
	Client *redis.Client
	TTL    time.Duration
}

// Acquire blocks (polling) until the lock is held or ctx/retry budget runs
// out. The returned func releases the lock.
func (m *Mutex) Acquire(ctx context.Context, key string) (func(), error) {
	ttl := m.TTL
	if ttl <= 0 {
		ttl = TTLWebhookLock
	}
	token := uuid.NewString()
	k := fmt.Sprintf(KeyWebhookLock, key)

	deadline := time.Now().Add(ttl)
	for {
		ok, err := m.Client.SetNX(ctx, k, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", k, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	release := func() {
		_, _ = releaseScript.Run(context.Background(), m.Client, []string{k}, token).Result()
	}
	return release, nil
}

// Dedup remembers processed event ids with a TTL. Best-effort only: the
// status guard on the order is the real idempotency mechanism.
type Dedup struct {
	Client  *redis.Client
	Service string
}

func (d *Dedup) Seen(ctx context.Context, eventID string) (bool, error) {
	return Exists(ctx, d.Client, fmt.Sprintf(KeyDedup, d.Service, eventID))
}

func (d *Dedup) Mark(ctx context.Context, eventID string) error {
	return d.Client.Set(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID), "1", TTLDedup).Err()
}

package lock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jarthod/faye-redis/internal/keystore"
)

// NowMs returns current time in epoch milliseconds. Injectable for tests.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Locker hands out named locks backed by the shared store.
type Locker struct {
	client *redis.Client
	keys   keystore.Keyspace
}

// New creates a Locker over the given store client and key layout.
func New(client *redis.Client, keys keystore.Keyspace) *Locker {
	return &Locker{client: client, keys: keys}
}

// Release frees a held lock. It deletes the lock key only while the holder's
// own expiry has not passed: once it has, another process may legitimately
// hold the lock and deleting would free someone else's claim.
type Release func(ctx context.Context)

// AcquireOrSkip attempts to take the named lock for roughly `hold`. It never
// blocks or retries: the second return value reports whether the lock was
// taken. A held, unexpired lock is a normal skip, not an error.
//
// The steal path writes the new expiry with get-and-set and wins only when
// the returned previous value equals the stale value observed beforehand.
// That is a consistency check, not a fencing token: a holder that outlives
// its own expiry cannot detect its successor.
func (l *Locker) AcquireOrSkip(ctx context.Context, name string, hold time.Duration) (Release, bool, error) {
	key := l.keys.Lock(name)
	now := NowMs()
	expiry := now + hold.Milliseconds() + 1
	val := strconv.FormatInt(expiry, 10)

	release := func(ctx context.Context) {
		if NowMs() < expiry {
			_ = l.client.Del(ctx, key).Err()
		}
	}

	set, err := l.client.SetNX(ctx, key, val, 0).Result()
	if err != nil {
		return nil, false, fmt.Errorf("set lock: %w", err)
	}
	if set {
		return release, true, nil
	}

	stored, err := l.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Holder released between our set and read. Skip; the next attempt
		// will find the key absent.
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read lock: %w", err)
	}
	if ts, perr := strconv.ParseInt(stored, 10, 64); perr == nil && now < ts {
		return nil, false, nil // held and still fresh
	}

	old, err := l.client.GetSet(ctx, key, val).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, fmt.Errorf("steal lock: %w", err)
	}
	if err == nil && old == stored {
		return release, true, nil
	}
	// Another process stole it between our read and write.
	return nil, false, nil
}

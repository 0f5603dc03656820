package engine

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestSweepDestroysStaleAndTombstonedClients(t *testing.T) {
	e, _ := newEngineForTest(t, Config{TimeoutMs: 60_000, LockTimeoutMs: 120_000}, nil, nil)
	ctx := context.Background()
	now := int64(10_000_000)
	stubNowMs(t, now)

	seed := []redis.Z{
		{Score: float64(now - 130_000), Member: "stale"}, // past 2x timeout
		{Score: float64(now - 110_000), Member: "fresh"}, // inside 2x timeout
		{Score: 0, Member: "tomb"},                       // crashed mid-destroy
	}
	if err := e.client().ZAdd(ctx, "/test/clients", seed...).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := e.Subscribe(ctx, "stale", "/foo"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := e.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	for _, gone := range []string{"stale", "tomb"} {
		if err := e.client().ZScore(ctx, "/test/clients", gone).Err(); !errors.Is(err, redis.Nil) {
			t.Fatalf("%s not swept: %v", gone, err)
		}
	}
	if err := e.client().ZScore(ctx, "/test/clients", "fresh").Err(); err != nil {
		t.Fatalf("fresh client swept: %v", err)
	}
	if member, _ := e.client().SIsMember(ctx, "/test/channels/foo", "stale").Result(); member {
		t.Fatalf("stale client's subscription survived")
	}
	// Lock released after the destroys completed.
	if err := e.client().Get(ctx, "/test/locks/gc").Err(); !errors.Is(err, redis.Nil) {
		t.Fatalf("gc lock not released: %v", err)
	}
}

func TestSweepNoopWhenTimeoutDisabled(t *testing.T) {
	e, _ := newEngineForTest(t, Config{LockTimeoutMs: 120_000}, nil, nil)
	ctx := context.Background()

	if err := e.client().ZAdd(ctx, "/test/clients", redis.Z{Score: 0, Member: "tomb"}).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := e.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if err := e.client().ZScore(ctx, "/test/clients", "tomb").Err(); err != nil {
		t.Fatalf("disabled sweep must not touch the registry: %v", err)
	}
}

func TestSweepSkipsWhenLockBusy(t *testing.T) {
	e, _ := newEngineForTest(t, Config{TimeoutMs: 60_000, LockTimeoutMs: 120_000}, nil, nil)
	ctx := context.Background()
	now := int64(10_000_000)
	stubNowMs(t, now)

	// Another node holds the lock with a future expiry. The lock compares
	// wall-clock time, so the seeded expiry is relative to real now.
	expiry := time.Now().UnixMilli() + 60_000
	if err := e.client().Set(ctx, "/test/locks/gc", strconv.FormatInt(expiry, 10), 0).Err(); err != nil {
		t.Fatalf("seed lock: %v", err)
	}
	if err := e.client().ZAdd(ctx, "/test/clients", redis.Z{Score: float64(now - 200_000), Member: "stale"}).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := e.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if err := e.client().ZScore(ctx, "/test/clients", "stale").Err(); err != nil {
		t.Fatalf("skipped sweep must leave clients alone: %v", err)
	}
}

func TestSweepWithZeroCandidatesReleasesLockImmediately(t *testing.T) {
	e, _ := newEngineForTest(t, Config{TimeoutMs: 60_000, LockTimeoutMs: 120_000}, nil, nil)
	ctx := context.Background()
	stubNowMs(t, 10_000_000)

	if err := e.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if err := e.client().Get(ctx, "/test/locks/gc").Err(); !errors.Is(err, redis.Nil) {
		t.Fatalf("lock must be released with zero candidates: %v", err)
	}
}

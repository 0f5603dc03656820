package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	logpkg "github.com/jarthod/faye-redis/pkg/log"
)

const gcLockName = "gc"

func (e *Engine) sweepLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(time.Duration(e.cfg.GCPeriodMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			if err := e.Sweep(context.Background()); err != nil {
				e.log.Warn("gc sweep", logpkg.Err(err))
			}
		}
	}
}

// Sweep runs one garbage-collection pass: under the cross-process lock it
// destroys every client whose last-seen score fell to at most now minus
// twice the liveness timeout. The scanned range starts at 0 on purpose: a
// crash mid-destroy can leave a tombstoned entry behind, and the sweep is
// what finally reclaims it. The lock is released only after every destroy
// finished; with zero candidates that is immediate. A busy lock means
// another node is sweeping (or recently did) and this pass is skipped.
func (e *Engine) Sweep(ctx context.Context) error {
	if e.cfg.TimeoutMs <= 0 {
		return nil
	}
	release, ok, err := e.locker.AcquireOrSkip(ctx, gcLockName, time.Duration(e.cfg.LockTimeoutMs)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire gc lock: %w", err)
	}
	if !ok {
		return nil
	}
	defer release(ctx)

	cutoff := nowMs() - 2*e.cfg.TimeoutMs
	stale, err := e.client().ZRangeByScore(ctx, e.keys().Clients(), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return fmt.Errorf("list stale clients: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, clientID := range stale {
		clientID := clientID
		g.Go(func() error { return e.DestroyClient(gctx, clientID) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("destroy stale clients: %w", err)
	}
	if len(stale) > 0 {
		e.log.Debug("gc sweep complete", logpkg.Int("swept", len(stale)))
	}
	return nil
}

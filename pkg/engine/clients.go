package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	logpkg "github.com/jarthod/faye-redis/pkg/log"
)

// nowMs returns current time in epoch milliseconds. Injectable for tests.
var nowMs = func() int64 { return time.Now().UnixMilli() }

// existsMultiplier loosens the liveness cutoff for the opportunistic check
// after a publish: slightly more lenient than GC's 2x so a client about to
// be reaped anyway is not falsely reported dead.
const existsMultiplier = 1.6

// CreateClient claims a fresh client id in the shared registry. It keeps
// asking the id generator for candidates until one was added exclusively, so
// a collision with an id claimed by another node is retried, never returned.
func (e *Engine) CreateClient(ctx context.Context) (string, error) {
	for {
		id := e.generateID()
		added, err := e.client().ZAddNX(ctx, e.keys().Clients(), redis.Z{
			Score:  float64(nowMs()),
			Member: id,
		}).Result()
		if err != nil {
			return "", fmt.Errorf("register client: %w", err)
		}
		if added == 0 {
			// Already a member: some node claimed this id first.
			continue
		}
		e.log.Debug("created new client", logpkg.Str("client", id))
		if err := e.Ping(ctx, id); err != nil {
			return "", err
		}
		e.emitHandshake(id)
		return id, nil
	}
}

func (e *Engine) generateID() string {
	if e.server != nil {
		if id := e.server.GenerateID(); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

// Ping refreshes a client's last-seen timestamp. No-op when the liveness
// timeout is disabled.
func (e *Engine) Ping(ctx context.Context, clientID string) error {
	if e.cfg.TimeoutMs <= 0 {
		return nil
	}
	err := e.client().ZAdd(ctx, e.keys().Clients(), redis.Z{
		Score:  float64(nowMs()),
		Member: clientID,
	}).Err()
	if err != nil {
		return fmt.Errorf("ping client: %w", err)
	}
	return nil
}

// ClientExists reports whether the client is alive: present in the registry
// with a last-seen score inside the lenient liveness window. A tombstoned
// client (score 0) reports dead immediately.
func (e *Engine) ClientExists(ctx context.Context, clientID string) (bool, error) {
	return e.clientExists(ctx, clientID, existsMultiplier)
}

func (e *Engine) clientExists(ctx context.Context, clientID string, multiplier float64) (bool, error) {
	score, err := e.client().ZScore(ctx, e.keys().Clients(), clientID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check client: %w", err)
	}
	if e.cfg.TimeoutMs <= 0 {
		// Presence expiry disabled: membership decides, tombstones still
		// count as dead.
		return score != 0, nil
	}
	if score == 0 {
		// Tombstone: dead regardless of where the cutoff lands.
		return false, nil
	}
	cutoff := float64(nowMs()) - multiplier*float64(e.cfg.TimeoutMs)
	return score > cutoff, nil
}

// ClientEntry is one registry row: a client id and its last-seen timestamp
// in epoch milliseconds, 0 for a tombstone.
type ClientEntry struct {
	ID         string
	LastSeenMs int64
}

// ListClients returns every registry entry, tombstones included, ordered by
// last-seen timestamp.
func (e *Engine) ListClients(ctx context.Context) ([]ClientEntry, error) {
	rows, err := e.client().ZRangeWithScores(ctx, e.keys().Clients(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	entries := make([]ClientEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, ClientEntry{
			ID:         fmt.Sprint(row.Member),
			LastSeenMs: int64(row.Score),
		})
	}
	return entries, nil
}

// DestroyClient removes every trace of a client from the shared store:
// tombstone first so liveness checks fail immediately, then subscriptions,
// then the message queue, then the registry entry, and finally the close
// notification toward all nodes. Invoking it twice concurrently for one id
// is safe; the second run finds nothing to remove and completes cleanly.
func (e *Engine) DestroyClient(ctx context.Context, clientID string) error {
	rdb, keys := e.client(), e.keys()

	err := rdb.ZAdd(ctx, keys.Clients(), redis.Z{Score: 0, Member: clientID}).Err()
	if err != nil {
		return fmt.Errorf("tombstone client: %w", err)
	}

	channels, err := rdb.SMembers(ctx, keys.ClientChannels(clientID)).Result()
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	for _, channel := range channels {
		if err := e.Unsubscribe(ctx, clientID, channel); err != nil {
			return err
		}
	}

	if err := rdb.Del(ctx, keys.ClientMessages(clientID)).Err(); err != nil {
		return fmt.Errorf("drop message queue: %w", err)
	}
	if err := rdb.ZRem(ctx, keys.Clients(), clientID).Err(); err != nil {
		return fmt.Errorf("deregister client: %w", err)
	}

	e.emitDisconnect(clientID)
	if err := rdb.Publish(ctx, keys.CloseTopic(), clientID).Err(); err != nil {
		return fmt.Errorf("announce close: %w", err)
	}
	e.log.Debug("destroyed client", logpkg.Str("client", clientID))
	return nil
}

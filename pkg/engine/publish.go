package engine

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	logpkg "github.com/jarthod/faye-redis/pkg/log"
)

// Publish fans a message out to every client subscribed to any of the given
// channels. channels is the externally-expanded pattern set for the
// message's target channel; the engine never interprets channel syntax. The
// set union across channels means a client subscribed via several matching
// patterns is enqueued exactly once. Each recipient gets the encoded message
// appended to its queue plus a flush notification, and its liveness is
// checked opportunistically so stale clients are reaped on the way.
func (e *Engine) Publish(ctx context.Context, msg Message, channels []string) error {
	rdb, keys := e.client(), e.keys()
	if len(channels) > 0 {
		payload, err := e.codec.Encode(msg)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		sets := make([]string, len(channels))
		for i, channel := range channels {
			sets[i] = keys.Subscribers(channel)
		}
		clients, err := rdb.SUnion(ctx, sets...).Result()
		if err != nil {
			return fmt.Errorf("fan out: %w", err)
		}
		for _, clientID := range clients {
			if err := rdb.RPush(ctx, keys.ClientMessages(clientID), payload).Err(); err != nil {
				return fmt.Errorf("queue message: %w", err)
			}
			if err := rdb.Publish(ctx, keys.MessageTopic(), clientID).Err(); err != nil {
				return fmt.Errorf("notify flush: %w", err)
			}
			e.reapIfStale(ctx, clientID)
		}
		e.log.Debug("published message",
			logpkg.Str("channel", msg.Channel), logpkg.Int("recipients", len(clients)))
	}
	e.emitPublish(msg.ClientID, msg.Channel, msg.Data)
	return nil
}

// reapIfStale destroys a client whose presence lapsed. Best-effort: failures
// are logged and left for the garbage collector.
func (e *Engine) reapIfStale(ctx context.Context, clientID string) {
	if e.cfg.TimeoutMs <= 0 {
		return
	}
	alive, err := e.clientExists(ctx, clientID, existsMultiplier)
	if err != nil || alive {
		return
	}
	if err := e.DestroyClient(ctx, clientID); err != nil {
		e.log.Warn("reap stale client", logpkg.Str("client", clientID), logpkg.Err(err))
	}
}

// EmptyQueue drains and delivers a client's pending messages. It only
// proceeds when this process owns a live connection for the client. The
// read-and-clear runs as one store transaction so a message appended
// concurrently lands either in this batch or in the queue afterwards, never
// nowhere. Rejected delivery requeues the raw entries for a later attempt;
// that can reorder relative to racing appends and may duplicate
// (at-least-once).
func (e *Engine) EmptyQueue(ctx context.Context, clientID string) error {
	if e.server == nil || !e.server.HasConnection(clientID) {
		return nil
	}
	rdb := e.client()
	key := e.keys().ClientMessages(clientID)

	var read *redis.StringSliceCmd
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		read = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("drain queue: %w", err)
	}
	raw := read.Val()
	if len(raw) == 0 {
		return nil
	}

	messages := make([]Message, 0, len(raw))
	for _, entry := range raw {
		m, derr := e.codec.Decode([]byte(entry))
		if derr != nil {
			e.log.Warn("dropping undecodable queue entry",
				logpkg.Str("client", clientID), logpkg.Err(derr))
			continue
		}
		messages = append(messages, m)
	}
	if len(messages) == 0 {
		return nil
	}
	if e.server.Deliver(clientID, messages) {
		e.log.Debug("flushed queue",
			logpkg.Str("client", clientID), logpkg.Int("messages", len(messages)))
		return nil
	}

	// Connection dropped between the flush trigger and delivery: push the
	// still-encoded entries back for a later attempt.
	vals := make([]interface{}, len(raw))
	for i, entry := range raw {
		vals[i] = entry
	}
	if err := rdb.RPush(ctx, key, vals...).Err(); err != nil {
		return fmt.Errorf("requeue after rejected delivery: %w", err)
	}
	return nil
}

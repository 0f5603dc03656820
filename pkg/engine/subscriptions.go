package engine

import (
	"context"
	"fmt"

	logpkg "github.com/jarthod/faye-redis/pkg/log"
)

// Subscribe records the (client, channel) relation on both sides of the
// mirrored index. The two writes are independent and idempotent; a crash
// between them leaves a divergence that DestroyClient's enumeration cleans
// up. The subscribe event fires only when the relation was novel.
func (e *Engine) Subscribe(ctx context.Context, clientID, channel string) error {
	added, err := e.client().SAdd(ctx, e.keys().ClientChannels(clientID), channel).Result()
	if err != nil {
		return fmt.Errorf("add channel to client: %w", err)
	}
	if added == 1 {
		e.emitSubscribe(clientID, channel)
	}
	if err := e.client().SAdd(ctx, e.keys().Subscribers(channel), clientID).Err(); err != nil {
		return fmt.Errorf("add client to channel: %w", err)
	}
	e.log.Debug("subscribed", logpkg.Str("client", clientID), logpkg.Str("channel", channel))
	return nil
}

// Unsubscribe mirrors Subscribe; the unsubscribe event fires only when the
// client was actually subscribed.
func (e *Engine) Unsubscribe(ctx context.Context, clientID, channel string) error {
	removed, err := e.client().SRem(ctx, e.keys().ClientChannels(clientID), channel).Result()
	if err != nil {
		return fmt.Errorf("remove channel from client: %w", err)
	}
	if removed == 1 {
		e.emitUnsubscribe(clientID, channel)
	}
	if err := e.client().SRem(ctx, e.keys().Subscribers(channel), clientID).Err(); err != nil {
		return fmt.Errorf("remove client from channel: %w", err)
	}
	e.log.Debug("unsubscribed", logpkg.Str("client", clientID), logpkg.Str("channel", channel))
	return nil
}

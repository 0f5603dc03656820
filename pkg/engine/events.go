package engine

// Events is the typed callback registry the engine raises host events
// through. Nil callbacks are skipped. Callbacks may fire from the engine's
// notification listener goroutine and must not block.
type Events struct {
	// Handshake fires once a new client id was exclusively claimed.
	Handshake func(clientID string)
	// Disconnect fires when a client was destroyed by this process.
	Disconnect func(clientID string)
	// Subscribe fires only on a client's first subscription to a channel.
	Subscribe func(clientID, channel string)
	// Unsubscribe fires only when the client was actually subscribed.
	Unsubscribe func(clientID, channel string)
	// Publish fires after a publish fan-out with the raw, unencoded data.
	Publish func(clientID, channel string, data []byte)
	// Close fires when any node announces a client's destruction.
	Close func(clientID string)
}

func (e *Engine) emitHandshake(id string) {
	if e.events.Handshake != nil {
		e.events.Handshake(id)
	}
}

func (e *Engine) emitDisconnect(id string) {
	if e.events.Disconnect != nil {
		e.events.Disconnect(id)
	}
}

func (e *Engine) emitSubscribe(id, channel string) {
	if e.events.Subscribe != nil {
		e.events.Subscribe(id, channel)
	}
}

func (e *Engine) emitUnsubscribe(id, channel string) {
	if e.events.Unsubscribe != nil {
		e.events.Unsubscribe(id, channel)
	}
}

func (e *Engine) emitPublish(clientID, channel string, data []byte) {
	if e.events.Publish != nil {
		e.events.Publish(clientID, channel, data)
	}
}

func (e *Engine) emitClose(id string) {
	if e.events.Close != nil {
		e.events.Close(id)
	}
}

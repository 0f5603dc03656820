package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jarthod/faye-redis/internal/keystore"
	"github.com/jarthod/faye-redis/internal/lock"
	logpkg "github.com/jarthod/faye-redis/pkg/log"
)

// Server is the surface the engine needs from its host message server. All
// three concerns are local to one process: id generation policy, ownership
// of client connections, and actual delivery down a socket.
type Server interface {
	// GenerateID proposes a candidate client id. The engine retries on
	// collision, so ids only need to be probably-unique.
	GenerateID() string
	// HasConnection reports whether this process currently owns a live
	// connection for the client.
	HasConnection(clientID string) bool
	// Deliver hands messages to the client's connection. Returning false
	// means the client is no longer deliverable and the engine requeues.
	Deliver(clientID string, messages []Message) bool
}

// Option customizes an Engine beyond its Config.
type Option func(*Engine)

// WithEvents installs the host's event callbacks.
func WithEvents(ev Events) Option {
	return func(e *Engine) { e.events = ev }
}

// WithCodec replaces the default JSON message codec.
func WithCodec(c Codec) Option {
	return func(e *Engine) { e.codec = c }
}

// WithLogger replaces the default logger.
func WithLogger(l logpkg.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithReconnectFailureCallback installs the hook invoked after repeated
// consecutive store ping failures. Errors or panics raised by the callback
// are caught and logged, never propagated.
func WithReconnectFailureCallback(fn func()) Option {
	return func(e *Engine) { e.onReconnectFailed = fn }
}

// Engine composes the client registry, subscription index, message queues,
// notification bus, and garbage collector over one shared store.
type Engine struct {
	cfg    Config
	store  *keystore.Store
	locker *lock.Locker
	server Server
	events Events
	codec  Codec
	log    logpkg.Logger

	sub               *redis.PubSub
	onReconnectFailed func()
	stopWatch         func()

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// New opens the store handle, subscribes the notification topics, and starts
// the periodic garbage collector and connection watchdog. server may be nil
// for tooling that never flushes queues or generates ids.
func New(cfg Config, server Server, opts ...Option) (*Engine, error) {
	store, err := keystore.Open(keystore.Options{
		URL:        cfg.URL,
		Host:       cfg.Host,
		Port:       cfg.Port,
		SocketPath: cfg.SocketPath,
		Database:   cfg.Database,
		Password:   cfg.Password,
		Namespace:  cfg.Namespace,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		store:  store,
		locker: lock.New(store.Client(), store.Keys()),
		server: server,
		codec:  jsonCodec{},
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		level := logpkg.InfoLevel
		if parsed, perr := logpkg.ParseLevel(cfg.LogLevel); perr == nil {
			level = parsed
		}
		e.log = logpkg.NewLogger(logpkg.WithLevel(level)).With(logpkg.Component("engine"))
	}

	// Subscribing forces the connection up front so establishment timing is
	// visible to the caller instead of hiding inside the first operation.
	ctx := context.Background()
	e.sub = store.Client().Subscribe(ctx, store.Keys().MessageTopic(), store.Keys().CloseTopic())
	if _, err := e.sub.Receive(ctx); err != nil {
		_ = e.sub.Close()
		_ = store.Close()
		return nil, fmt.Errorf("subscribe notifications: %w", err)
	}
	e.wg.Add(1)
	go e.listen()

	if cfg.GCPeriodMs > 0 {
		e.wg.Add(1)
		go e.sweepLoop()
	}
	if cfg.WatchdogIntervalMs > 0 {
		e.stopWatch = store.Watch(
			time.Duration(cfg.WatchdogIntervalMs)*time.Millisecond,
			time.Duration(cfg.WatchdogTimeoutMs)*time.Millisecond,
			cfg.WatchdogFailures,
			e.onReconnectFailed,
			e.log,
		)
	}
	e.log.Debug("engine started", logpkg.Str("namespace", cfg.Namespace))
	return e, nil
}

// listen reacts to cross-node notifications: a message notification means
// some node appended to a client's queue and whoever owns the connection
// should flush it; a close notification tells nodes to drop local state for
// a destroyed client.
func (e *Engine) listen() {
	defer e.wg.Done()
	msgTopic := e.store.Keys().MessageTopic()
	closeTopic := e.store.Keys().CloseTopic()
	ch := e.sub.Channel()
	for {
		select {
		case <-e.done:
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			switch m.Channel {
			case msgTopic:
				if err := e.EmptyQueue(context.Background(), m.Payload); err != nil {
					e.log.Warn("flush after notification", logpkg.Str("client", m.Payload), logpkg.Err(err))
				}
			case closeTopic:
				e.emitClose(m.Payload)
			}
		}
	}
}

// Disconnect tears this node down: it stops the sweeper and watchdog,
// unsubscribes the notification listeners, and closes the store handle.
// In-flight client operations are not awaited; they complete or fail
// independently. Safe to call more than once.
func (e *Engine) Disconnect() error {
	var err error
	e.once.Do(func() {
		close(e.done)
		if e.stopWatch != nil {
			e.stopWatch()
		}
		_ = e.sub.Close()
		e.wg.Wait()
		err = e.store.Close()
		e.log.Debug("engine disconnected")
	})
	return err
}

// PingStore checks that the shared store is reachable.
func (e *Engine) PingStore(ctx context.Context) error {
	return e.store.Ping(ctx)
}

func (e *Engine) client() *redis.Client   { return e.store.Client() }
func (e *Engine) keys() keystore.Keyspace { return e.store.Keys() }

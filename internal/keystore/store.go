package keystore

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	logpkg "github.com/jarthod/faye-redis/pkg/log"
)

// Options locate the shared store and pick the namespace.
type Options struct {
	// URL takes precedence when set (redis://, rediss:// or unix://).
	URL        string
	Host       string
	Port       int
	SocketPath string
	Database   int
	Password   string
	Namespace  string
}

// Store is the process's single handle to the shared key-value store.
type Store struct {
	client *redis.Client
	keys   Keyspace
}

// Open builds the store handle from Options. The underlying connection is
// dialed on first command; use Ping to force establishment.
func Open(opts Options) (*Store, error) {
	var ro *redis.Options
	switch {
	case opts.URL != "":
		parsed, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("parse store url: %w", err)
		}
		ro = parsed
	case opts.SocketPath != "":
		ro = &redis.Options{Network: "unix", Addr: opts.SocketPath}
	default:
		host := opts.Host
		if host == "" {
			host = "localhost"
		}
		port := opts.Port
		if port == 0 {
			port = 6379
		}
		ro = &redis.Options{Addr: net.JoinHostPort(host, strconv.Itoa(port))}
	}
	if opts.Password != "" {
		ro.Password = opts.Password
	}
	if opts.Database != 0 {
		ro.DB = opts.Database
	}
	return &Store{client: redis.NewClient(ro), keys: NewKeyspace(opts.Namespace)}, nil
}

// Client exposes the underlying store client.
func (s *Store) Client() *redis.Client { return s.client }

// Keys returns the namespace key layout.
func (s *Store) Keys() Keyspace { return s.keys }

// Ping checks store reachability.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// Watch pings the store every interval, allowing timeout per response, and
// invokes onFail after `failures` consecutive misses. The counter resets
// after each invocation so a persistent outage fires the callback
// repeatedly rather than once. Returns a stop function; safe to call twice.
func (s *Store) Watch(interval, timeout time.Duration, failures int, onFail func(), logger logpkg.Logger) (stop func()) {
	if interval <= 0 {
		// Watching disabled; hand back a stop that has nothing to stop.
		return func() {}
	}
	if failures <= 0 {
		failures = 1
	}
	done := make(chan struct{})
	var once sync.Once
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		misses := 0
		for {
			select {
			case <-done:
				return
			case <-t.C:
				ctx, cancel := context.WithTimeout(context.Background(), timeout)
				err := s.client.Ping(ctx).Err()
				cancel()
				if err == nil {
					misses = 0
					continue
				}
				misses++
				logger.Warn("store ping failed", logpkg.Int("consecutive", misses), logpkg.Err(err))
				if misses >= failures {
					misses = 0
					if onFail != nil {
						invoke(onFail, logger)
					}
				}
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

// invoke shields the watchdog loop from a misbehaving callback.
func invoke(fn func(), logger logpkg.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("reconnect-failure callback panicked", logpkg.Any("panic", r))
		}
	}()
	fn()
}

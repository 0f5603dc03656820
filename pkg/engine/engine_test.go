package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	logpkg "github.com/jarthod/faye-redis/pkg/log"
)

// fakeServer scripts the host side: id generation, connection ownership,
// and delivery outcomes.
type fakeServer struct {
	mu          sync.Mutex
	ids         []string
	connections map[string]bool
	rejectAll   bool
	delivered   map[string][]Message
}

func newFakeServer(ids ...string) *fakeServer {
	return &fakeServer{
		ids:         ids,
		connections: map[string]bool{},
		delivered:   map[string][]Message{},
	}
}

func (f *fakeServer) GenerateID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ids) == 0 {
		return ""
	}
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id
}

func (f *fakeServer) HasConnection(clientID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connections[clientID]
}

func (f *fakeServer) Deliver(clientID string, messages []Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectAll {
		return false
	}
	f.delivered[clientID] = append(f.delivered[clientID], messages...)
	return true
}

func (f *fakeServer) connect(clientID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connections[clientID] = true
}

func (f *fakeServer) reject() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectAll = true
}

func (f *fakeServer) deliveredTo(clientID string) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.delivered[clientID]...)
}

// eventRecorder collects typed events; callbacks may fire from the
// notification listener goroutine.
type eventRecorder struct {
	mu           sync.Mutex
	handshakes   []string
	disconnects  []string
	closes       []string
	subscribes   [][2]string
	unsubscribes [][2]string
	publishes    []string
}

func (r *eventRecorder) callbacks() Events {
	return Events{
		Handshake: func(id string) { r.mu.Lock(); r.handshakes = append(r.handshakes, id); r.mu.Unlock() },
		Disconnect: func(id string) {
			r.mu.Lock()
			r.disconnects = append(r.disconnects, id)
			r.mu.Unlock()
		},
		Close: func(id string) { r.mu.Lock(); r.closes = append(r.closes, id); r.mu.Unlock() },
		Subscribe: func(id, ch string) {
			r.mu.Lock()
			r.subscribes = append(r.subscribes, [2]string{id, ch})
			r.mu.Unlock()
		},
		Unsubscribe: func(id, ch string) {
			r.mu.Lock()
			r.unsubscribes = append(r.unsubscribes, [2]string{id, ch})
			r.mu.Unlock()
		},
		Publish: func(id, ch string, data []byte) {
			r.mu.Lock()
			r.publishes = append(r.publishes, ch)
			r.mu.Unlock()
		},
	}
}

func (r *eventRecorder) snapshot() (handshakes, disconnects, closes []string, subscribes, unsubscribes [][2]string, publishes []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.handshakes...),
		append([]string(nil), r.disconnects...),
		append([]string(nil), r.closes...),
		append([][2]string(nil), r.subscribes...),
		append([][2]string(nil), r.unsubscribes...),
		append([]string(nil), r.publishes...)
}

func newEngineForTest(t *testing.T, cfg Config, srv *fakeServer, rec *eventRecorder) (*Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg.URL = "redis://" + mr.Addr()
	if cfg.Namespace == "" {
		cfg.Namespace = "/test"
	}
	cfg.GCPeriodMs = 0
	cfg.WatchdogIntervalMs = 0
	var server Server
	if srv != nil {
		server = srv
	}
	opts := []Option{WithLogger(logpkg.NewNop())}
	if rec != nil {
		opts = append(opts, WithEvents(rec.callbacks()))
	}
	e, err := New(cfg, server, opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(func() { _ = e.Disconnect() })
	return e, mr
}

func stubNowMs(t *testing.T, ms int64) func(int64) {
	t.Helper()
	orig := nowMs
	cur := ms
	nowMs = func() int64 { return cur }
	t.Cleanup(func() { nowMs = orig })
	return func(ms int64) { cur = ms }
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	e, _ := newEngineForTest(t, Default(), nil, nil)
	if err := e.Disconnect(); err != nil {
		t.Fatalf("first disconnect: %v", err)
	}
	if err := e.Disconnect(); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
}

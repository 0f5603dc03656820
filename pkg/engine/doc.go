// Package engine implements the shared-store coordination backend for a
// clustered publish/subscribe message server.
//
// Every server process runs one Engine against the same store. The Engine
// tracks client presence with a liveness timeout, keeps a bidirectional
// subscription index, queues pending messages per client, fans publishes out
// across nodes over the store's pub/sub topics, and garbage-collects stale
// clients under a distributed lock so only one node sweeps at a time.
//
// The transport layer that owns client sockets stays outside: the host
// server supplies connection ownership, delivery, and id generation through
// the Server interface, and receives lifecycle events through the typed
// Events callbacks.
package engine

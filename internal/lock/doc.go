// Package lock builds a best-effort cross-process mutex out of the store's
// set-if-absent and get-and-set primitives, using timestamp expiry instead
// of native TTL.
//
// The lock serializes work across processes, not within one: each node's
// engine already runs its store operations sequentially. Acquisition never
// blocks; a busy lock is a normal skip outcome for the caller.
package lock

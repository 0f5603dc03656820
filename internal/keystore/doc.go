// Package keystore owns the connection to the shared key-value store and the
// key layout used on it.
//
// The Store is an explicit handle: it is opened once at engine startup and
// closed on teardown, never created lazily on first use. Every engine
// component funnels its reads and writes through this single handle, so the
// Store is also where the connection watchdog lives.
package keystore

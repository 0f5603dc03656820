package keystore

// Keyspace builds store keys for one configured namespace. The namespace
// prefix is part of every key so multiple logical deployments can share a
// store without collision.
type Keyspace struct {
	ns string
}

// NewKeyspace returns a Keyspace rooted at the given prefix. An empty prefix
// is valid and yields keys like "/clients".
func NewKeyspace(ns string) Keyspace { return Keyspace{ns: ns} }

// Namespace returns the configured prefix.
func (k Keyspace) Namespace() string { return k.ns }

// Clients is the sorted set mapping client id to last-seen epoch-ms.
// A score of 0 is a tombstone: destruction in progress.
func (k Keyspace) Clients() string { return k.ns + "/clients" }

// ClientChannels is the set of channels one client subscribed (reverse index).
func (k Keyspace) ClientChannels(clientID string) string {
	return k.ns + "/clients/" + clientID + "/channels"
}

// Subscribers is the set of client ids subscribed to a channel (forward
// index). No separator: channel names begin with '/'.
func (k Keyspace) Subscribers(channel string) string {
	return k.ns + "/channels" + channel
}

// ClientMessages is the FIFO list of encoded messages pending delivery.
func (k Keyspace) ClientMessages(clientID string) string {
	return k.ns + "/clients/" + clientID + "/messages"
}

// Lock is the key holding one distributed lock's expiry timestamp.
func (k Keyspace) Lock(name string) string { return k.ns + "/locks/" + name }

// MessageTopic is the pub/sub topic announcing "client X has new messages".
func (k Keyspace) MessageTopic() string { return k.ns + "/notifications/messages" }

// CloseTopic is the pub/sub topic announcing "client X was destroyed".
func (k Keyspace) CloseTopic() string { return k.ns + "/notifications/close" }

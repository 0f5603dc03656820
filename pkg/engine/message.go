package engine

import "encoding/json"

// Message is one pub/sub message routed through the shared store.
type Message struct {
	ID       string          `json:"id,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	Channel  string          `json:"channel"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Codec converts messages to and from the opaque byte form held in the
// per-client queues. Encoding must be reversible; beyond that the store
// never interprets it.
type Codec interface {
	Encode(Message) ([]byte, error)
	Decode([]byte) (Message, error)
}

type jsonCodec struct{}

func (jsonCodec) Encode(m Message) ([]byte, error) { return json.Marshal(m) }

func (jsonCodec) Decode(b []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(b, &m)
	return m, err
}

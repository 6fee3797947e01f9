package websocket

import (
	"context"
	"encoding/json"
	"fmt"
)

// Message types sent by the server
const (
	TypeSnapshot = "snapshot"
	TypeChange   = "change"
	TypePong     = "pong"
	TypeError    = "error"
)

// Message types sent by viewers
const (
	TypePing   = "ping"
	TypeResync = "resync"
)

// Message is the envelope of every frame
type Message struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Payload any             `json:"-"`
}

// marshalMessage encodes Payload into Data and then the envelope
func marshalMessage(message *Message) ([]byte, error) {
	if message.Payload != nil {
		data, err := json.Marshal(message.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		message.Data = data
	}
	return json.Marshal(message)
}

// MessageHandler handles one viewer message type
type MessageHandler func(ctx context.Context, client *Client, message *Message) error

// PingHandler answers ping with pong, echoing the data
func PingHandler(_ context.Context, client *Client, message *Message) error {
	return client.Send(&Message{Type: TypePong, Data: message.Data})
}

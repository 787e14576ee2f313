// Package protocol defines the message envelope exchanged between the
// background, content, and panel contexts, plus the type and action
// vocabulary each channel understands.
//
// Two channels exist:
//
//   - ChannelHost: the inter-context transport between the background and
//     content contexts (in-memory, fire-and-forget).
//   - ChannelWindow: the same-window cross-frame transport between the
//     content context and the embedded panel (origin-checked both ways).
//
// Every envelope carries exactly one Type; receivers ignore unknown types
// rather than erroring, so the vocabulary can grow without breaking peers.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Channel distinguishes the two transports.
type Channel string

const (
	ChannelHost   Channel = "host"
	ChannelWindow Channel = "window"
)

// Envelope is the single message shape crossing context boundaries.
// Payload keys depend on Type/Action; accessors below tolerate absence.
type Envelope struct {
	Channel Channel        `json:"channel"`
	Type    string         `json:"type"`
	Action  string         `json:"action,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`

	// ReplyTo names the host-channel endpoint awaiting a response, for
	// senders that expect one. Window-channel frames leave it empty: their
	// reply path is the connection they arrived on.
	ReplyTo string `json:"replyTo,omitempty"`
}

// Str returns the payload value under key as a string, or "" when the key
// is absent or not a string.
func (e Envelope) Str(key string) string {
	s, _ := e.Payload[key].(string)
	return s
}

// Bool returns the payload value under key as a bool, or false when absent.
func (e Envelope) Bool(key string) bool {
	b, _ := e.Payload[key].(bool)
	return b
}

// With returns a copy of the envelope with the payload key set. The
// original payload map is not mutated.
func (e Envelope) With(key string, value any) Envelope {
	p := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		p[k] = v
	}
	p[key] = value
	e.Payload = p
	return e
}

// Encode serialises the envelope for the window-channel wire.
func Encode(e Envelope) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", e.Type, err)
	}
	return data, nil
}

// Decode parses a window-channel frame. The channel is forced to
// ChannelWindow regardless of what the peer declared: frames arriving over
// the cross-frame transport are window messages by construction.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("protocol: decode: %w", err)
	}
	e.Channel = ChannelWindow
	return e, nil
}

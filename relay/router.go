// Package relay dispatches context-to-context messages. The Router maps an
// inbound envelope to at most one handler per (channel, type) key; the Bus
// is the fire-and-forget host-channel transport between the background and
// content contexts.
//
// The router deliberately has single dispatch per key: overlapping listeners
// for one inbound type collapse into one handler that matches on sub-fields
// (the envelope's Action), so ownership of every message shape is explicit.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codenitrr/codelution/protocol"
)

// UnknownTypeError reports a dispatch that matched no handler. Remote peers
// never see it; it exists for local callers that need to distinguish a
// silent drop from a handled message.
type UnknownTypeError struct {
	Channel protocol.Channel
	Type    string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("relay: no handler for %s/%s", e.Channel, e.Type)
}

// ReplyFunc delivers a response envelope back to the sender's transport.
// Handlers may call it synchronously during dispatch or hold it for an
// asynchronous response after returning Pending.
type ReplyFunc func(protocol.Envelope)

// Disposition tells the transport what to do with the response path after
// dispatch returns.
type Disposition int

const (
	// Done means the handler has finished; any response was already sent
	// through the reply func and the response path can close.
	Done Disposition = iota
	// Pending means the handler kept the reply func and will respond later;
	// the transport must keep the response path open.
	Pending
)

// Handler processes one envelope. It must not retain env.Payload beyond the
// call unless it copies it.
type Handler func(ctx context.Context, env protocol.Envelope, reply ReplyFunc) Disposition

type key struct {
	channel protocol.Channel
	typ     string
}

// Router dispatches envelopes to registered handlers. Reads take RLock;
// registration takes the full lock. Dispatch for a single inbound source is
// expected to be serialized by that source (one goroutine per inbox), which
// preserves relative order for messages of the same watchId or stream.
type Router struct {
	mu       sync.RWMutex
	handlers map[key]Handler
	logger   *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets a custom logger for the router.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// NewRouter creates an empty Router.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		handlers: make(map[key]Handler),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register binds a handler to a (channel, type) key. Registering the same
// key again replaces the previous handler; at most one handler ever
// matches an envelope.
func (r *Router) Register(channel protocol.Channel, typ string, h Handler) {
	r.mu.Lock()
	r.handlers[key{channel, typ}] = h
	r.mu.Unlock()
}

// Dispatch routes an envelope to its handler. Envelopes with an
// unrecognized (channel, type) are dropped without error: unknown types are
// ignored, never a failure surfaced to the sender. The returned Disposition
// tells the transport whether a response is still pending.
func (r *Router) Dispatch(ctx context.Context, env protocol.Envelope, reply ReplyFunc) Disposition {
	r.mu.RLock()
	h := r.handlers[key{env.Channel, env.Type}]
	r.mu.RUnlock()

	if h == nil {
		r.logger.Debug("relay: no handler, dropping",
			"channel", env.Channel, "type", env.Type, "action", env.Action)
		return Done
	}
	if reply == nil {
		reply = func(protocol.Envelope) {}
	}
	return h(ctx, env, reply)
}

// DispatchStrict behaves like Dispatch but surfaces an UnknownTypeError to
// the local caller instead of dropping silently. The wire transports never
// use it; loopback senders inside one context may.
func (r *Router) DispatchStrict(ctx context.Context, env protocol.Envelope, reply ReplyFunc) (Disposition, error) {
	r.mu.RLock()
	h := r.handlers[key{env.Channel, env.Type}]
	r.mu.RUnlock()

	if h == nil {
		return Done, &UnknownTypeError{Channel: env.Channel, Type: env.Type}
	}
	if reply == nil {
		reply = func(protocol.Envelope) {}
	}
	return h(ctx, env, reply), nil
}

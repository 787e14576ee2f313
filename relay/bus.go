package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/codenitrr/codelution/protocol"
)

// Endpoint names on the host channel.
const (
	EndpointBackground = "background"
	EndpointContent    = "content"
)

// Bus is the in-memory host-channel transport. Each endpoint owns a
// buffered inbox drained by a single goroutine, so delivery within one
// endpoint is ordered. Send is fire-and-forget with at-most-once semantics:
// a missing endpoint or a full inbox drops the message. This is the Go
// shape of "the content script is not ready yet": the sender swallows the
// failure and moves on.
type Bus struct {
	mu        sync.RWMutex
	endpoints map[string]*endpoint
	logger    *slog.Logger
}

type endpoint struct {
	name   string
	inbox  chan protocol.Envelope
	router *Router
	cancel context.CancelFunc
}

// NewBus creates an empty Bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		endpoints: make(map[string]*endpoint),
		logger:    logger,
	}
}

// Attach registers an endpoint backed by the given router and starts its
// drain goroutine. Attaching an existing name replaces the previous
// endpoint (its drain loop stops after its context is cancelled).
func (b *Bus) Attach(ctx context.Context, name string, router *Router, buffer int) {
	if buffer <= 0 {
		buffer = 64
	}
	epCtx, cancel := context.WithCancel(ctx)
	ep := &endpoint{
		name:   name,
		inbox:  make(chan protocol.Envelope, buffer),
		router: router,
		cancel: cancel,
	}

	b.mu.Lock()
	if old := b.endpoints[name]; old != nil {
		old.cancel()
	}
	b.endpoints[name] = ep
	b.mu.Unlock()

	go b.drain(epCtx, ep)
}

// Detach removes an endpoint. Messages sent to it afterwards are dropped.
func (b *Bus) Detach(name string) {
	b.mu.Lock()
	if ep := b.endpoints[name]; ep != nil {
		ep.cancel()
		delete(b.endpoints, name)
	}
	b.mu.Unlock()
}

// Send delivers an envelope to the named endpoint. It never blocks and
// never errors: an unknown endpoint or a saturated inbox drops the message
// with a Warn log. Callers that need a response pass a reply destination in
// the payload and wait on their own inbox.
func (b *Bus) Send(to string, env protocol.Envelope) {
	env.Channel = protocol.ChannelHost

	b.mu.RLock()
	ep := b.endpoints[to]
	b.mu.RUnlock()

	if ep == nil {
		b.logger.Warn("relay: endpoint not ready, dropping",
			"to", to, "type", env.Type, "action", env.Action)
		return
	}

	select {
	case ep.inbox <- env:
	default:
		b.logger.Warn("relay: inbox full, dropping",
			"to", to, "type", env.Type, "action", env.Action)
	}
}

func (b *Bus) drain(ctx context.Context, ep *endpoint) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-ep.inbox:
			// A sender that expects a response names its own endpoint in
			// ReplyTo; the response is just another fire-and-forget send, so
			// Pending handlers keep working after dispatch returns.
			var reply ReplyFunc
			if to := env.ReplyTo; to != "" {
				reply = func(resp protocol.Envelope) { b.Send(to, resp) }
			}
			ep.router.Dispatch(ctx, env, reply)
		}
	}
}

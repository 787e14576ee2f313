// Package bridge serves the window channel: the origin-validated transport
// between the content context and every open panel instance. Panels connect
// over WebSocket; inbound frames become window-channel envelopes dispatched
// through the relay router, and outbound notifications broadcast to all
// connected panels.
//
// The origin is checked twice: at upgrade time against the Origin header,
// and again before every dispatch. An untrusted sender is dropped silently
// (no response that would confirm the endpoint exists).
package bridge

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/codenitrr/codelution/origin"
	"github.com/codenitrr/codelution/protocol"
	"github.com/codenitrr/codelution/relay"
)

// Server is the panel-facing transport of one content context.
type Server struct {
	validator *origin.Validator
	router    *relay.Router
	logger    *slog.Logger
	upgrader  websocket.Upgrader

	mu    sync.Mutex
	peers map[*peer]struct{}
}

// peer is one connected panel instance. Writes are serialized through the
// send channel; a slow or gone peer is dropped rather than blocking the
// content context. send is never closed: a Pending handler may hold a reply
// func past the peer's lifetime, so teardown is signalled through done and
// late sends fall into the closed-done select arm.
type peer struct {
	conn   *websocket.Conn
	origin string
	send   chan []byte
	done   chan struct{}
}

// NewServer creates a bridge dispatching inbound panel traffic to router.
func NewServer(validator *origin.Validator, router *relay.Router, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		validator: validator,
		router:    router,
		logger:    logger,
		peers:     make(map[*peer]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return validator.Allow(r.Header.Get("Origin"))
		},
	}
	return s
}

// Handler returns the HTTP surface: the WebSocket endpoint plus a health
// probe.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/panel/ws", s.handleWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the rejection; an untrusted origin ends
		// here with no further signal.
		s.logger.Debug("bridge: upgrade rejected", "error", err)
		return
	}

	p := &peer{
		conn:   conn,
		origin: r.Header.Get("Origin"),
		send:   make(chan []byte, 64),
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()
	s.logger.Info("bridge: panel connected", "origin", p.origin)

	go s.writeLoop(p)
	s.readLoop(r.Context(), p)
}

// readLoop drains inbound frames from one panel. Serial processing per
// connection preserves relative order for messages of the same stream.
func (s *Server) readLoop(ctx context.Context, p *peer) {
	defer s.drop(p)

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}

		env, err := protocol.Decode(data)
		if err != nil {
			s.logger.Debug("bridge: undecodable frame dropped", "error", err)
			continue
		}

		// Re-validate per frame: the trusted origin never changes, but the
		// check is cheap and keeps the validator the single gate in front
		// of any DOM access.
		if !s.validator.Allow(p.origin) {
			continue
		}

		s.router.Dispatch(ctx, env, func(resp protocol.Envelope) {
			s.sendTo(p, resp)
		})
	}
}

func (s *Server) writeLoop(p *peer) {
	for {
		select {
		case <-p.done:
			return
		case data := <-p.send:
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.drop(p)
				return
			}
		}
	}
}

// Broadcast delivers an envelope to every connected panel. Peers that
// cannot keep up are dropped; delivery is at-most-once.
func (s *Server) Broadcast(env protocol.Envelope) {
	data, err := protocol.Encode(env)
	if err != nil {
		s.logger.Error("bridge: encode broadcast", "type", env.Type, "error", err)
		return
	}

	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		select {
		case <-p.done:
		case p.send <- data:
		default:
			s.logger.Warn("bridge: peer stalled, dropping", "origin", p.origin)
			s.drop(p)
		}
	}
}

// sendTo queues a frame for one peer. A gone peer swallows the frame; a
// reply held by a Pending handler past the disconnect lands here harmlessly.
func (s *Server) sendTo(p *peer, env protocol.Envelope) {
	data, err := protocol.Encode(env)
	if err != nil {
		s.logger.Error("bridge: encode reply", "type", env.Type, "error", err)
		return
	}
	select {
	case <-p.done:
	case p.send <- data:
	default:
		s.drop(p)
	}
}

func (s *Server) drop(p *peer) {
	s.mu.Lock()
	if _, ok := s.peers[p]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.peers, p)
	s.mu.Unlock()

	close(p.done)
	p.conn.Close()
}

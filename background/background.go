// Package background implements the context with no DOM access: it keeps the
// tab registry, fans tab updates out to panels, and nudges the content
// context when a tab becomes active again.
package background

import (
	"context"
	"log/slog"
	"sync"

	"github.com/codenitrr/codelution/protocol"
	"github.com/codenitrr/codelution/relay"
)

// Broadcaster delivers an envelope to every open panel instance.
type Broadcaster interface {
	Broadcast(protocol.Envelope)
}

// Tab is the registry entry for one tab: the last URL and title the content
// context reported.
type Tab struct {
	URL   string
	Title string
}

// Service is the background context. It consumes host-channel messages from
// its bus endpoint and never touches the page.
type Service struct {
	bus    *relay.Bus
	panels Broadcaster
	logger *slog.Logger

	mu     sync.Mutex
	tabs   map[string]Tab
	active string
}

// New creates the background service. panels may be nil when no panel
// transport is up; broadcasts then go nowhere, which is the same outcome as
// zero connected panels.
func New(bus *relay.Bus, panels Broadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		bus:    bus,
		panels: panels,
		logger: logger,
		tabs:   make(map[string]Tab),
	}
}

// Router builds the host-channel router for this context. Attach it to the
// bus under relay.EndpointBackground.
func (s *Service) Router() *relay.Router {
	r := relay.NewRouter(relay.WithLogger(s.logger))
	r.Register(protocol.ChannelHost, protocol.TypeSidebarUpdateURL, s.handleSidebarUpdateURL)
	r.Register(protocol.ChannelHost, protocol.TypeAction, s.handleAction)
	return r
}

// handleSidebarUpdateURL records the tab's new location and forwards the
// update to every open panel.
func (s *Service) handleSidebarUpdateURL(_ context.Context, env protocol.Envelope, _ relay.ReplyFunc) relay.Disposition {
	url := env.Str("url")
	title := env.Str("title")
	tabID := env.Str("tabId")
	if url == "" {
		return relay.Done
	}

	s.mu.Lock()
	s.tabs[tabID] = Tab{URL: url, Title: title}
	s.mu.Unlock()

	s.logger.Debug("background: tab updated", "tabId", tabID, "url", url)
	if s.panels != nil {
		s.panels.Broadcast(protocol.SidebarUpdateURL(url, title, tabID))
	}
	return relay.Done
}

// handleAction routes the bare-action host messages the background owns.
// Unknown actions fall through silently.
func (s *Service) handleAction(_ context.Context, env protocol.Envelope, _ relay.ReplyFunc) relay.Disposition {
	switch env.Action {
	case protocol.ActionOpenSidebar:
		// A panel (or shortcut) asked for the sidebar; the content context
		// owns the toggle, so relay there. A not-ready content endpoint
		// swallows the send.
		s.bus.Send(relay.EndpointContent, protocol.Envelope{
			Type:   protocol.TypeAction,
			Action: protocol.ActionOpenSidebar,
		})
	}
	return relay.Done
}

// TabActivated records the newly active tab and asks its content context to
// re-evaluate the panel restore state. The content side may not be attached
// yet; the send is fire-and-forget.
func (s *Service) TabActivated(tabID string) {
	s.mu.Lock()
	s.active = tabID
	s.mu.Unlock()

	s.bus.Send(relay.EndpointContent, protocol.Envelope{
		Type:    protocol.TypeAction,
		Action:  protocol.ActionCheckSidebarState,
		Payload: map[string]any{"tabId": tabID},
	})
}

// ActiveTab returns the registry entry for the active tab, if known.
func (s *Service) ActiveTab() (string, Tab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab, ok := s.tabs[s.active]
	return s.active, tab, ok
}

// Tabs returns a copy of the registry.
func (s *Service) Tabs() map[string]Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Tab, len(s.tabs))
	for id, t := range s.tabs {
		out[id] = t
	}
	return out
}

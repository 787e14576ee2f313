// Package content implements the context that owns the page: it wires the
// watch manager, injector, navigation detector, and panel state machine to
// both channels, and registers a handler for every message shape the
// protocol defines.
package content

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/codenitrr/codelution/dom"
	"github.com/codenitrr/codelution/idgen"
	"github.com/codenitrr/codelution/inject"
	"github.com/codenitrr/codelution/nav"
	"github.com/codenitrr/codelution/panel"
	"github.com/codenitrr/codelution/protocol"
	"github.com/codenitrr/codelution/relay"
	"github.com/codenitrr/codelution/store"
	"github.com/codenitrr/codelution/watch"
)

// Broadcaster delivers an envelope to every open panel instance.
type Broadcaster interface {
	Broadcast(protocol.Envelope)
}

// Options configures a content Context. Win, Bus, and States are required;
// the rest default.
type Options struct {
	Win    *dom.Window
	Bus    *relay.Bus
	Panels Broadcaster
	States *store.States

	// PanelURL is the document the injected panel surface embeds.
	PanelURL string

	// TabID identifies this page towards the background registry.
	TabID string

	PanelCfg  panel.Config
	NavCfg    nav.Config
	InjectCfg inject.Config

	// LoadDelay is the settle heuristic between page load-complete and the
	// first restore evaluation.
	LoadDelay time.Duration

	// Screenshot captures the live page when one is attached; nil makes
	// captureScreenshot a no-op (blank in-memory pages have nothing to
	// capture).
	Screenshot func(ctx context.Context) ([]byte, error)

	IDs    idgen.Generator
	Logger *slog.Logger
}

// Context is one page's content context.
type Context struct {
	win      *dom.Window
	bus      *relay.Bus
	panels   Broadcaster
	machine  *panel.Machine
	watches  *watch.Manager
	injector *inject.Injector
	detector *nav.Detector
	ids      idgen.Generator
	logger   *slog.Logger
	navCfg   nav.Config

	tabID      string
	loadDelay  time.Duration
	screenshot func(ctx context.Context) ([]byte, error)
}

// New wires a content context over the given window. It does not arm the
// navigation detector or run the load-complete restore; call Start.
func New(opts Options) *Context {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IDs == nil {
		opts.IDs = idgen.Default
	}
	if opts.TabID == "" {
		opts.TabID = idgen.Prefixed("tab_", idgen.NanoID(8))()
	}
	if opts.LoadDelay <= 0 {
		opts.LoadDelay = 500 * time.Millisecond
	}

	c := &Context{
		win:        opts.Win,
		bus:        opts.Bus,
		panels:     opts.Panels,
		ids:        opts.IDs,
		logger:     opts.Logger,
		tabID:      opts.TabID,
		loadDelay:  opts.LoadDelay,
		screenshot: opts.Screenshot,
	}

	c.navCfg = opts.NavCfg
	c.machine = panel.NewMachine(opts.States, &domSurface{win: opts.Win, panelURL: opts.PanelURL, logger: opts.Logger}, opts.PanelCfg)
	c.watches = watch.NewManager(opts.Win, c.emitToPanels, opts.Logger)
	c.injector = inject.New(opts.Win, opts.InjectCfg)
	return c
}

// Machine exposes the panel state machine, mainly for wiring and tests.
func (c *Context) Machine() *panel.Machine { return c.machine }

// SetPanels wires the panel broadcaster after construction; the bridge needs
// the window router first, so the two reference each other in stages. Call
// before Start.
func (c *Context) SetPanels(p Broadcaster) { c.panels = p }

// Start arms the navigation detector and schedules the load-complete restore
// evaluation. The detector and any pending restore stop with ctx.
func (c *Context) Start(ctx context.Context) {
	c.detector = nav.New(c.win, c.onNavigate(ctx), c.navCfg)
	c.detector.Start(ctx)

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.loadDelay):
		}
		if err := c.machine.Restore(ctx, c.win.URL()); err != nil {
			c.logger.Warn("content: load restore failed", "error", err)
		}
	}()
}

// HostRouter builds the host-channel router. Attach it to the bus under
// relay.EndpointContent.
func (c *Context) HostRouter(ctx context.Context) *relay.Router {
	r := relay.NewRouter(relay.WithLogger(c.logger))
	r.Register(protocol.ChannelHost, protocol.TypeAction, c.handleAction(ctx))
	r.Register(protocol.ChannelHost, protocol.TypeNordcraftAction, c.handleNordcraftAction)
	r.Register(protocol.ChannelHost, protocol.TypeManipulateDOM, c.handleManipulate(ctx))
	r.Register(protocol.ChannelHost, protocol.TypeGetData, c.handleGetData)
	return r
}

// WindowRouter builds the window-channel router the bridge dispatches into.
func (c *Context) WindowRouter(ctx context.Context) *relay.Router {
	r := relay.NewRouter(relay.WithLogger(c.logger))
	r.Register(protocol.ChannelWindow, protocol.TypeInjectWebComponent, c.handleInjectFrame(ctx))
	r.Register(protocol.ChannelWindow, protocol.TypeManipulateDOMFrame, c.handleManipulate(ctx))
	r.Register(protocol.ChannelWindow, protocol.TypeStartDOMObserver, c.handleObserveFrame)
	r.Register(protocol.ChannelWindow, protocol.TypeObserveDOMValue, c.handleObserveFrame)
	r.Register(protocol.ChannelWindow, protocol.TypeGetDOMInfo, c.handleGetDOMInfo)
	r.Register(protocol.ChannelWindow, protocol.TypeGetTabInfo, c.handleGetTabInfo)
	r.Register(protocol.ChannelWindow, protocol.TypeSidebarReady, c.handleSidebarReady)
	return r
}

// handleAction owns the bare-action host messages.
func (c *Context) handleAction(ctx context.Context) relay.Handler {
	return func(_ context.Context, env protocol.Envelope, _ relay.ReplyFunc) relay.Disposition {
		switch env.Action {
		case protocol.ActionCheckSidebarState:
			if err := c.machine.Restore(ctx, c.win.URL()); err != nil {
				c.logger.Warn("content: restore failed", "error", err)
			}
		case protocol.ActionOpenSidebar:
			if err := c.machine.Toggle(ctx, c.win.URL()); err != nil {
				c.logger.Warn("content: toggle failed", "error", err)
			}
		case protocol.ActionShowCustomSidebar:
			if err := c.machine.Open(ctx, c.win.URL()); err != nil {
				c.logger.Warn("content: open failed", "error", err)
			}
		case protocol.ActionCaptureScreenshot:
			c.captureScreenshot(ctx)
		case protocol.ActionOverwriteText:
			c.setValue(env.Str("selector"), "innerText", env.Payload["value"])
		}
		return relay.Done
	}
}

// captureScreenshot grabs the live page and ships it to the panels. Without
// an attached page there is nothing to capture; the requested effect simply
// does not happen.
func (c *Context) captureScreenshot(ctx context.Context) {
	if c.screenshot == nil {
		c.logger.Debug("content: no live page, screenshot skipped")
		return
	}
	go func() {
		data, err := c.screenshot(ctx)
		if err != nil {
			c.logger.Warn("content: screenshot failed", "error", err)
			return
		}
		if c.panels != nil {
			c.panels.Broadcast(protocol.Envelope{
				Channel: protocol.ChannelWindow,
				Type:    protocol.TypeAction,
				Action:  protocol.ActionCaptureScreenshot,
				Payload: map[string]any{
					"data":  base64.StdEncoding.EncodeToString(data),
					"tabId": c.tabID,
				},
			})
		}
	}()
}

// handleNordcraftAction answers READ_URL with the current location. Other
// actions under this type are outbound-only and fall through.
func (c *Context) handleNordcraftAction(_ context.Context, env protocol.Envelope, reply relay.ReplyFunc) relay.Disposition {
	if env.Action != protocol.ActionReadURL {
		return relay.Done
	}
	reply(protocol.Envelope{
		Channel: protocol.ChannelHost,
		Type:    protocol.TypeNordcraftAction,
		Action:  protocol.ActionReadURL,
		Payload: map[string]any{
			"url":       c.win.URL(),
			"title":     c.win.Document().Title(),
			"requestId": env.Str("requestId"),
		},
	})
	return relay.Done
}

// handleManipulate routes the sub-actions of a manipulateDom request. An
// unknown sub-action is dropped; every sub-action tolerates an absent
// element silently.
func (c *Context) handleManipulate(ctx context.Context) relay.Handler {
	return func(_ context.Context, env protocol.Envelope, reply relay.ReplyFunc) relay.Disposition {
		selector := env.Str("selector")
		attribute := env.Str("attribute")

		switch env.Str("action") {
		case protocol.ActionObserve:
			watchID := env.Str("watchId")
			if watchID == "" {
				watchID = c.ids()
			}
			c.watches.Register(selector, attribute, env.Str("eventType"), watchID)

		case protocol.ActionGet:
			reply(c.watches.GetInfo(selector, attribute, env.Str("requestId")))

		case protocol.ActionSet:
			c.setValue(selector, attribute, env.Payload["value"])

		case protocol.ActionInject:
			c.injector.Inject(ctx,
				env.Str("name"), env.Str("src"),
				env.Str("selector"), env.Str("placement"))
		}
		return relay.Done
	}
}

// setValue writes one value into the page. The write mirrors the read
// preference order of the watch manager so a subsequent get returns what was
// set.
func (c *Context) setValue(selector, attribute string, value any) {
	el := c.win.Document().Query(selector)
	if el == nil {
		c.logger.Debug("content: set target absent", "selector", selector)
		return
	}
	switch attribute {
	case "innerText", "textContent":
		if s, ok := value.(string); ok {
			el.SetText(s)
		}
	case "value", "checked":
		el.SetProp(attribute, value)
	default:
		if s, ok := value.(string); ok {
			el.SetAttr(attribute, s)
		} else {
			el.SetProp(attribute, value)
		}
	}
}

// handleGetData answers with a page snapshot.
func (c *Context) handleGetData(_ context.Context, env protocol.Envelope, reply relay.ReplyFunc) relay.Disposition {
	doc := c.win.Document()
	reply(protocol.Envelope{
		Channel: protocol.ChannelHost,
		Type:    protocol.TypeGetData,
		Payload: map[string]any{
			"url":       c.win.URL(),
			"title":     doc.Title(),
			"tabId":     c.tabID,
			"requestId": env.Str("requestId"),
		},
	})
	return relay.Done
}

// handleInjectFrame mounts a web component requested over the window
// channel.
func (c *Context) handleInjectFrame(ctx context.Context) relay.Handler {
	return func(_ context.Context, env protocol.Envelope, _ relay.ReplyFunc) relay.Disposition {
		c.injector.Inject(ctx,
			env.Str("name"), env.Str("src"),
			env.Str("selector"), env.Str("placement"))
		return relay.Done
	}
}

// handleObserveFrame registers a watch. start-dom-observer and
// observe-dom-value are aliases for the same operation.
func (c *Context) handleObserveFrame(_ context.Context, env protocol.Envelope, _ relay.ReplyFunc) relay.Disposition {
	watchID := env.Str("watchId")
	if watchID == "" {
		watchID = c.ids()
	}
	c.watches.Register(env.Str("selector"), env.Str("attribute"), env.Str("eventType"), watchID)
	return relay.Done
}

func (c *Context) handleGetDOMInfo(_ context.Context, env protocol.Envelope, reply relay.ReplyFunc) relay.Disposition {
	reply(c.watches.GetInfo(env.Str("selector"), env.Str("attribute"), env.Str("requestId")))
	return relay.Done
}

func (c *Context) handleGetTabInfo(_ context.Context, _ protocol.Envelope, reply relay.ReplyFunc) relay.Disposition {
	reply(protocol.TabInfo(c.win.URL(), c.win.Document().Title(), c.tabID))
	return relay.Done
}

// handleSidebarReady answers a panel's announcement with the current tab
// snapshot so it can render without a round trip.
func (c *Context) handleSidebarReady(_ context.Context, _ protocol.Envelope, reply relay.ReplyFunc) relay.Disposition {
	reply(protocol.TabInfo(c.win.URL(), c.win.Document().Title(), c.tabID))
	return relay.Done
}

// onNavigate is the single fan-out for a detected navigation: background
// first, then panels, then the restore evaluation for the new URL.
func (c *Context) onNavigate(ctx context.Context) nav.EmitFunc {
	return func(newURL, oldURL, title string) {
		if c.bus != nil {
			c.bus.Send(relay.EndpointBackground, protocol.SidebarUpdateURL(newURL, title, c.tabID))
		}
		if c.panels != nil {
			for _, env := range nav.Notifications(newURL, oldURL, title, c.tabID) {
				c.panels.Broadcast(env)
			}
		}
		go func() {
			if err := c.machine.Restore(ctx, newURL); err != nil {
				c.logger.Warn("content: restore after navigation failed", "error", err)
			}
		}()
	}
}

// emitToPanels is the watch manager's notification sink.
func (c *Context) emitToPanels(env protocol.Envelope) {
	if c.panels != nil {
		c.panels.Broadcast(env)
	}
}

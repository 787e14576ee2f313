package content

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codenitrr/codelution/dom"
	"github.com/codenitrr/codelution/panel"
	"github.com/codenitrr/codelution/protocol"
	"github.com/codenitrr/codelution/relay"
	"github.com/codenitrr/codelution/store"
)

const pageHTML = `<html><head><title>App</title></head><body>
<div id="status">ready</div>
<input id="field" value="initial">
<div id="root"></div>
</body></html>`

type fakePanels struct {
	mu   sync.Mutex
	sent []protocol.Envelope
}

func (f *fakePanels) Broadcast(env protocol.Envelope) {
	f.mu.Lock()
	f.sent = append(f.sent, env)
	f.mu.Unlock()
}

func (f *fakePanels) ofType(typ string) []protocol.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.Envelope
	for _, e := range f.sent {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition never met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newTestContext(t *testing.T) (*Context, *fakePanels, *dom.Window) {
	t.Helper()
	win := dom.NewWindow(dom.MustParse(pageHTML), "https://app.example.com/")
	panels := &fakePanels{}
	states := store.NewStates(store.OpenMemory(t))
	c := New(Options{
		Win:      win,
		Bus:      relay.NewBus(slog.Default()),
		Panels:   panels,
		States:   states,
		PanelURL: "https://panel.example.com/index.html",
		TabID:    "tab-1",
		PanelCfg: panel.Config{RestoreDelay: time.Millisecond},
	})
	return c, panels, win
}

func dispatch(t *testing.T, r *relay.Router, env protocol.Envelope) []protocol.Envelope {
	t.Helper()
	var replies []protocol.Envelope
	r.Dispatch(context.Background(), env, func(resp protocol.Envelope) {
		replies = append(replies, resp)
	})
	return replies
}

func TestReadURLRepliesCurrentLocation(t *testing.T) {
	c, _, _ := newTestContext(t)
	r := c.HostRouter(context.Background())

	replies := dispatch(t, r, protocol.Envelope{
		Channel: protocol.ChannelHost,
		Type:    protocol.TypeNordcraftAction,
		Action:  protocol.ActionReadURL,
		Payload: map[string]any{"requestId": "req-1"},
	})

	if len(replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(replies))
	}
	if replies[0].Str("url") != "https://app.example.com/" || replies[0].Str("requestId") != "req-1" {
		t.Fatalf("reply = %+v", replies[0])
	}
}

func TestManipulateSetThenGet(t *testing.T) {
	c, _, _ := newTestContext(t)
	r := c.HostRouter(context.Background())

	dispatch(t, r, protocol.Envelope{
		Channel: protocol.ChannelHost,
		Type:    protocol.TypeManipulateDOM,
		Payload: map[string]any{
			"action": "set", "selector": "#field", "attribute": "value", "value": "updated",
		},
	})

	replies := dispatch(t, r, protocol.Envelope{
		Channel: protocol.ChannelHost,
		Type:    protocol.TypeManipulateDOM,
		Payload: map[string]any{
			"action": "get", "selector": "#field", "attribute": "value", "requestId": "req-2",
		},
	})

	if len(replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(replies))
	}
	if got := replies[0].Payload["value"]; got != "updated" {
		t.Fatalf("value = %v, want updated", got)
	}
}

func TestManipulateSetAbsentElementIsNoOp(t *testing.T) {
	c, _, _ := newTestContext(t)
	r := c.HostRouter(context.Background())

	dispatch(t, r, protocol.Envelope{
		Channel: protocol.ChannelHost,
		Type:    protocol.TypeManipulateDOM,
		Payload: map[string]any{
			"action": "set", "selector": "#nope", "attribute": "value", "value": "x",
		},
	})
}

func TestObserveEmitsBaselineToPanels(t *testing.T) {
	c, panels, _ := newTestContext(t)
	r := c.WindowRouter(context.Background())

	dispatch(t, r, protocol.Envelope{
		Channel: protocol.ChannelWindow,
		Type:    protocol.TypeStartDOMObserver,
		Payload: map[string]any{
			"selector": "#status", "attribute": "innerText", "watchId": "w-1",
		},
	})

	waitFor(t, func() bool { return len(panels.ofType(protocol.TypeDOMValueChanged)) == 1 })
	env := panels.ofType(protocol.TypeDOMValueChanged)[0]
	if env.Str("watchId") != "w-1" || env.Payload["value"] != "ready" {
		t.Fatalf("baseline = %+v", env)
	}
}

func TestGetDOMInfoAbsentSelectorRepliesNull(t *testing.T) {
	c, _, _ := newTestContext(t)
	r := c.WindowRouter(context.Background())

	replies := dispatch(t, r, protocol.Envelope{
		Channel: protocol.ChannelWindow,
		Type:    protocol.TypeGetDOMInfo,
		Payload: map[string]any{
			"selector": "#missing", "attribute": "value", "requestId": "req-3",
		},
	})

	if len(replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(replies))
	}
	if replies[0].Type != protocol.TypeDOMInfoResult {
		t.Fatalf("type = %q", replies[0].Type)
	}
	if replies[0].Payload["value"] != nil || replies[0].Str("requestId") != "req-3" {
		t.Fatalf("reply = %+v", replies[0])
	}
}

func TestGetTabInfo(t *testing.T) {
	c, _, _ := newTestContext(t)
	r := c.WindowRouter(context.Background())

	replies := dispatch(t, r, protocol.Envelope{
		Channel: protocol.ChannelWindow,
		Type:    protocol.TypeGetTabInfo,
	})

	if len(replies) != 1 || replies[0].Type != protocol.TypeTabInfo {
		t.Fatalf("replies = %+v", replies)
	}
	if replies[0].Str("url") != "https://app.example.com/" || replies[0].Str("title") != "App" {
		t.Fatalf("tab info = %+v", replies[0])
	}
}

func TestOpenSidebarTogglesAndMountsSurface(t *testing.T) {
	c, _, win := newTestContext(t)
	r := c.HostRouter(context.Background())

	dispatch(t, r, protocol.Envelope{
		Channel: protocol.ChannelHost,
		Type:    protocol.TypeAction,
		Action:  protocol.ActionOpenSidebar,
	})

	if !c.Machine().IsOpen() {
		t.Fatal("machine not open after openSidebar")
	}
	host := win.Document().Query("#" + hostID)
	if host == nil {
		t.Fatal("panel host not mounted")
	}
	if style, _ := host.Attr("style"); style != "display:block" {
		t.Fatalf("host style = %q", style)
	}

	// Second toggle closes but keeps the host mounted.
	dispatch(t, r, protocol.Envelope{
		Channel: protocol.ChannelHost,
		Type:    protocol.TypeAction,
		Action:  protocol.ActionOpenSidebar,
	})
	if c.Machine().IsOpen() {
		t.Fatal("machine still open after second toggle")
	}
	host = win.Document().Query("#" + hostID)
	if host == nil {
		t.Fatal("host unmounted by hide")
	}
	if style, _ := host.Attr("style"); style != "display:none" {
		t.Fatalf("host style after hide = %q", style)
	}
}

func TestNavigationFansOutAndRestores(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	win := dom.NewWindow(dom.MustParse(pageHTML), "https://app.example.com/")
	panels := &fakePanels{}
	bus := relay.NewBus(slog.Default())
	states := store.NewStates(store.OpenMemory(t))

	bg := make(chan protocol.Envelope, 4)
	bgRouter := relay.NewRouter()
	bgRouter.Register(protocol.ChannelHost, protocol.TypeSidebarUpdateURL, func(_ context.Context, env protocol.Envelope, _ relay.ReplyFunc) relay.Disposition {
		bg <- env
		return relay.Done
	})
	bus.Attach(ctx, relay.EndpointBackground, bgRouter, 0)

	c := New(Options{
		Win:      win,
		Bus:      bus,
		Panels:   panels,
		States:   states,
		PanelURL: "https://panel.example.com/index.html",
		TabID:    "tab-1",
		PanelCfg: panel.Config{RestoreDelay: time.Millisecond},
	})
	c.Start(ctx)

	win.History().PushState("https://app.example.com/next")

	select {
	case env := <-bg:
		if env.Str("url") != "https://app.example.com/next" {
			t.Fatalf("background got %+v", env)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("background never saw the update")
	}

	waitFor(t, func() bool {
		return len(panels.ofType(protocol.TypeURLChanged)) >= 1 &&
			len(panels.ofType(protocol.TypeTabInfo)) >= 1
	})
}

func TestCheckSidebarStateRestoresFreshOpen(t *testing.T) {
	win := dom.NewWindow(dom.MustParse(pageHTML), "https://app.example.com/")
	states := store.NewStates(store.OpenMemory(t))
	if err := states.Put(context.Background(), store.PanelState{
		IsOpen: true, URL: "https://app.example.com/",
	}); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	c := New(Options{
		Win:      win,
		Bus:      relay.NewBus(slog.Default()),
		Panels:   &fakePanels{},
		States:   states,
		PanelURL: "https://panel.example.com/index.html",
		TabID:    "tab-1",
		PanelCfg: panel.Config{RestoreDelay: time.Millisecond},
	})
	r := c.HostRouter(context.Background())

	dispatch(t, r, protocol.Envelope{
		Channel: protocol.ChannelHost,
		Type:    protocol.TypeAction,
		Action:  protocol.ActionCheckSidebarState,
	})

	waitFor(t, func() bool { return c.Machine().IsOpen() })
	if win.Document().Query("#"+hostID) == nil {
		t.Fatal("panel host not mounted on restore")
	}
}

func TestSidebarReadyRepliesTabInfo(t *testing.T) {
	c, _, _ := newTestContext(t)
	r := c.WindowRouter(context.Background())

	replies := dispatch(t, r, protocol.Envelope{
		Channel: protocol.ChannelWindow,
		Type:    protocol.TypeSidebarReady,
	})
	if len(replies) != 1 || replies[0].Type != protocol.TypeTabInfo {
		t.Fatalf("replies = %+v", replies)
	}
}

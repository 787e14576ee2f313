package inject

import (
	"context"
	"testing"
	"time"

	"github.com/codenitrr/codelution/dom"
)

const page = `<!DOCTYPE html>
<html><head></head><body><div id="root"></div><p id="after"></p></body></html>`

func newInjector(t *testing.T, cfg Config) (*Injector, *dom.Window) {
	t.Helper()
	win := dom.NewWindow(dom.MustParse(page), "https://app.example/")
	return New(win, cfg), win
}

func countWidgets(doc *dom.Document, name string) int {
	return len(doc.QueryAll(name))
}

func countScripts(doc *dom.Document, src string) int {
	n := 0
	for _, s := range doc.QueryAll("script") {
		if v, _ := s.Attr("src"); v == src {
			n++
		}
	}
	return n
}

func TestInject_Idempotent(t *testing.T) {
	inj, win := newInjector(t, Config{})
	win.CustomElements().Define("x-widget")

	ctx := context.Background()
	inj.Inject(ctx, "x-widget", "a.js", "#root", PlacementAppend)
	inj.Inject(ctx, "x-widget", "a.js", "#root", PlacementAppend)

	doc := win.Document()
	if got := countWidgets(doc, "x-widget"); got != 1 {
		t.Errorf("widgets: got %d, want 1", got)
	}
	if got := countScripts(doc, "a.js"); got != 1 {
		t.Errorf("scripts: got %d, want 1", got)
	}
}

func TestInject_MissingFieldsNoOp(t *testing.T) {
	inj, win := newInjector(t, Config{})
	win.CustomElements().Define("x-widget")
	ctx := context.Background()

	inj.Inject(ctx, "", "a.js", "#root", "")
	inj.Inject(ctx, "x-widget", "", "#root", "")

	if got := countWidgets(win.Document(), "x-widget"); got != 0 {
		t.Errorf("widgets: got %d, want 0", got)
	}
}

func TestInject_Placements(t *testing.T) {
	tests := []struct {
		placement string
		check     func(t *testing.T, doc *dom.Document)
	}{
		{PlacementAppend, func(t *testing.T, doc *dom.Document) {
			if doc.Query("#root + x-widget") == nil {
				t.Error("append: widget not directly after target")
			}
		}},
		{PlacementPrepend, func(t *testing.T, doc *dom.Document) {
			if doc.Query("x-widget + #root") == nil {
				t.Error("prepend: widget not directly before target")
			}
		}},
		{PlacementReplace, func(t *testing.T, doc *dom.Document) {
			if doc.Query("#root") != nil {
				t.Error("replace: target still present")
			}
			if doc.Query("x-widget") == nil {
				t.Error("replace: widget missing")
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.placement, func(t *testing.T) {
			inj, win := newInjector(t, Config{})
			win.CustomElements().Define("x-widget")
			inj.Inject(context.Background(), "x-widget", "a.js", "#root", tt.placement)
			tt.check(t, win.Document())
		})
	}
}

func TestInject_NoTargetFallsBackToBody(t *testing.T) {
	inj, win := newInjector(t, Config{})
	win.CustomElements().Define("x-widget")

	inj.Inject(context.Background(), "x-widget", "a.js", "#nowhere", PlacementAppend)

	doc := win.Document()
	if doc.Query("body > x-widget") == nil {
		t.Error("widget not appended to body")
	}
}

func TestInject_WaitsForRegistration(t *testing.T) {
	inj, win := newInjector(t, Config{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	inj.Inject(ctx, "x-widget", "a.js", "#root", PlacementAppend)

	// Not yet registered: nothing mounted.
	time.Sleep(20 * time.Millisecond)
	if got := countWidgets(win.Document(), "x-widget"); got != 0 {
		t.Fatalf("mounted before registration: %d widgets", got)
	}

	win.CustomElements().Define("x-widget")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if countWidgets(win.Document(), "x-widget") == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("widget never mounted after registration")
}

func TestInject_GivesUpAfterMaxAttempts(t *testing.T) {
	inj, win := newInjector(t, Config{Interval: time.Millisecond, MaxAttempts: 3})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	inj.Inject(ctx, "x-widget", "a.js", "#root", PlacementAppend)

	time.Sleep(50 * time.Millisecond)
	// Registration arrives too late.
	win.CustomElements().Define("x-widget")
	time.Sleep(20 * time.Millisecond)

	if got := countWidgets(win.Document(), "x-widget"); got != 0 {
		t.Errorf("widgets after give-up: got %d, want 0", got)
	}
}

func TestInject_NoRegistryProceedsOptimistically(t *testing.T) {
	inj, win := newInjector(t, Config{})
	win.DisableCustomElements()

	inj.Inject(context.Background(), "x-widget", "a.js", "#root", PlacementAppend)
	if got := countWidgets(win.Document(), "x-widget"); got != 1 {
		t.Errorf("widgets: got %d, want 1", got)
	}
}

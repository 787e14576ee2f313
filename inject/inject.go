// Package inject mounts a named custom element wrapping a remote script,
// exactly once, at a caller-specified location. Mounting before the element
// type is registered would silently produce an inert element, so the
// injector defers itself on a fixed-interval retry until the registry knows
// the name.
package inject

import (
	"context"
	"log/slog"
	"time"

	"github.com/codenitrr/codelution/dom"
)

// Placement controls where the element lands relative to the target.
const (
	PlacementReplace = "replace"
	PlacementPrepend = "prepend"
	PlacementAppend  = "append" // default
)

// Injector mounts web components into one window's document.
type Injector struct {
	win      *dom.Window
	interval time.Duration
	// maxAttempts caps the registration wait; 0 preserves the original
	// unbounded behaviour.
	maxAttempts int
	logger      *slog.Logger
}

// Config for an Injector. Zero values get defaults: 500ms interval, 120
// attempts (about a minute of waiting).
type Config struct {
	Interval    time.Duration
	MaxAttempts int
	Logger      *slog.Logger
}

// New creates an Injector over win.
func New(win *dom.Window, cfg Config) *Injector {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Injector{
		win:         win,
		interval:    cfg.Interval,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
	}
}

// DefaultMaxAttempts is applied by config loading when no cap is set.
const DefaultMaxAttempts = 120

// Inject mounts the named element carrying scriptSrc. Missing name or
// scriptSrc is a silent no-op. When the element type is not yet registered
// the injector retries on its interval until registration or exhaustion;
// ctx cancellation stops the wait (page teardown).
func (i *Injector) Inject(ctx context.Context, name, scriptSrc, selector, placement string) {
	if name == "" || scriptSrc == "" {
		i.logger.Debug("inject: missing name or src, skipping")
		return
	}

	reg := i.win.CustomElements()
	if reg == nil || reg.Defined(name) {
		// No registry (older engine): proceed optimistically.
		i.mount(name, scriptSrc, selector, placement)
		return
	}

	go i.waitAndMount(ctx, name, scriptSrc, selector, placement)
}

// waitAndMount polls the registry until the element type appears.
func (i *Injector) waitAndMount(ctx context.Context, name, scriptSrc, selector, placement string) {
	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			attempts++
			if i.win.CustomElements().Defined(name) {
				i.mount(name, scriptSrc, selector, placement)
				return
			}
			if i.maxAttempts > 0 && attempts >= i.maxAttempts {
				i.logger.Warn("inject: element type never registered, giving up",
					"name", name, "attempts", attempts)
				return
			}
		}
	}
}

// mount performs the idempotent insertion.
func (i *Injector) mount(name, scriptSrc, selector, placement string) {
	doc := i.win.Document()

	// Idempotence: an existing script with the same src, or an existing
	// element of this type anywhere, means the work is already done; just
	// make sure the element carries the script.
	if existing := findByTag(doc, name); existing != nil {
		i.ensureScript(doc, existing, scriptSrc)
		return
	}
	if script := findScript(doc, scriptSrc); script != nil {
		return
	}

	el := doc.CreateElement(name)

	target := (*dom.Element)(nil)
	if selector != "" {
		target = doc.Query(selector)
	}
	if target == nil {
		// No target: append at the end of the body, guarded above by the
		// document-wide type lookup.
		body := doc.Body()
		if body == nil {
			i.logger.Debug("inject: document has no body, skipping", "name", name)
			return
		}
		body.AppendChild(el)
	} else {
		switch placement {
		case PlacementReplace:
			target.ReplaceWith(el)
		case PlacementPrepend:
			target.InsertBefore(el)
		default:
			target.InsertAfter(el)
		}
	}

	i.ensureScript(doc, el, scriptSrc)
	i.logger.Info("inject: mounted web component", "name", name, "src", scriptSrc)
}

// ensureScript guarantees el carries a script child with the given src.
func (i *Injector) ensureScript(doc *dom.Document, el *dom.Element, src string) {
	existing := el.FindChild(func(c *dom.Element) bool {
		if c.Tag() != "script" {
			return false
		}
		v, _ := c.Attr("src")
		return v == src
	})
	if existing != nil {
		return
	}
	script := doc.CreateElement("script")
	script.SetAttr("src", src)
	script.SetAttr("type", "module")
	el.AppendChild(script)
}

func findByTag(doc *dom.Document, tag string) *dom.Element {
	return doc.Query(tag)
}

func findScript(doc *dom.Document, src string) *dom.Element {
	for _, s := range doc.QueryAll("script") {
		if v, _ := s.Attr("src"); v == src {
			return s
		}
	}
	return nil
}

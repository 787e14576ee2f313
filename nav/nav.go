// Package nav detects single-page-application navigation from four
// independent signals (history API interception, popstate, polling, and
// title-change hints) and collapses them into exactly one notification per
// logical navigation.
//
// Every signal converges on one compare-and-update step against the shared
// current URL: whichever signal observes the change first produces the
// notification, and the later signals see no delta and stay silent. Polling
// exists specifically to cover navigation paths none of the other three
// signals observe (frameworks that mutate location without touching the
// intercepted entry points).
package nav

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codenitrr/codelution/dom"
	"github.com/codenitrr/codelution/protocol"
)

// EmitFunc receives the single navigation notification.
type EmitFunc func(newURL, oldURL, title string)

// Config tunes the detector. Zero values get defaults: 1s poll interval,
// 100ms title settle delay.
type Config struct {
	PollInterval time.Duration
	SettleDelay  time.Duration
	Logger       *slog.Logger
}

func (c *Config) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 100 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Detector owns the navigation state of one content context. It is created
// per page lifetime; a full reload means a new Detector.
type Detector struct {
	win    *dom.Window
	emit   EmitFunc
	cfg    Config
	logger *slog.Logger

	mu           sync.Mutex
	currentURL   string
	currentTitle string
	titleRemover func()

	removers []func()
}

// New creates a Detector seeded with the window's current location and
// title. Call Start to arm the signals.
func New(win *dom.Window, emit EmitFunc, cfg Config) *Detector {
	cfg.defaults()
	return &Detector{
		win:          win,
		emit:         emit,
		cfg:          cfg,
		logger:       cfg.Logger,
		currentURL:   win.URL(),
		currentTitle: win.Document().Title(),
	}
}

// Current returns the navigation state as last observed.
func (d *Detector) Current() (url, title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentURL, d.currentTitle
}

// Start arms all four signals. They stay armed until ctx is cancelled
// (page teardown); there is no finer-grained cancellation.
func (d *Detector) Start(ctx context.Context) {
	// Signal 1: history API interception, after the underlying call.
	d.removers = append(d.removers, d.win.History().Intercept(func(_, _ string) {
		d.check("history")
	}))

	// Signal 2: back/forward navigation.
	d.removers = append(d.removers, d.win.OnPopstate(func() {
		d.check("popstate")
	}))

	// Signal 3: polling safety net.
	go d.poll(ctx)

	// Signal 4: title mutation as a hint: settle, then re-check. The
	// observer binds into the current document tree, so a full document
	// swap (mirror refresh) re-arms it against the new head.
	d.armTitleObserver(ctx)
	d.removers = append(d.removers, d.win.OnDocumentChange(func() {
		d.armTitleObserver(ctx)
		d.check("mirror")
	}))

	context.AfterFunc(ctx, d.stop)
}

// armTitleObserver attaches the title-change hint to the current document's
// head, replacing any observer left on a previous document.
func (d *Detector) armTitleObserver(ctx context.Context) {
	doc := d.win.Document()
	var remove func()
	if head := doc.Head(); head != nil {
		remove = doc.Observe(head, func() {
			go func() {
				select {
				case <-ctx.Done():
				case <-time.After(d.cfg.SettleDelay):
					d.check("title")
				}
			}()
		})
	}

	d.mu.Lock()
	old := d.titleRemover
	d.titleRemover = remove
	d.mu.Unlock()
	if old != nil {
		old()
	}
}

func (d *Detector) stop() {
	for _, r := range d.removers {
		r()
	}
	d.removers = nil

	d.mu.Lock()
	remove := d.titleRemover
	d.titleRemover = nil
	d.mu.Unlock()
	if remove != nil {
		remove()
	}
}

func (d *Detector) poll(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.check("poll")
		}
	}
}

// check is the single convergence point. It compares the live location to
// the shared currentURL under the lock; only the first signal to observe a
// change gets to mutate the state and emit.
func (d *Detector) check(signal string) {
	url := d.win.URL()
	title := d.win.Document().Title()

	d.mu.Lock()
	if url == d.currentURL {
		// Refresh the title silently; a title change alone is not a
		// navigation.
		d.currentTitle = title
		d.mu.Unlock()
		return
	}
	old := d.currentURL
	d.currentURL = url
	d.currentTitle = title

	d.logger.Info("nav: url changed", "signal", signal, "old", old, "new", url)
	// Emit while still holding the lock: two signals observing back-to-back
	// navigations must deliver their notifications in observation order.
	d.emit(url, old, title)
	d.mu.Unlock()
}

// Notifications builds the two envelopes one navigation produces: the
// generic URL_CHANGED action and the tab-info refresh. Both carry the same
// data because existing panel listeners expect either.
func Notifications(newURL, oldURL, title, tabID string) []protocol.Envelope {
	return []protocol.Envelope{
		protocol.URLChanged(newURL, oldURL, title),
		protocol.TabInfo(newURL, title, tabID),
	}
}

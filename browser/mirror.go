package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/codenitrr/codelution/dom"
)

// Mirror polls the live page and applies its movement to win: markup is
// re-parsed only when it changed (firing the window's document-change
// listeners), the title flows through the document so title observers fire,
// and the location moves via SetLocationExternal, like a framework that
// bypasses the history API; polling or the document swap picks it up.
//
// Mirror blocks until ctx is done; run it in a goroutine. A failed snapshot
// is skipped, not fatal: the page may be mid-navigation.
func Mirror(ctx context.Context, tab *Tab, win *dom.Window, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	var lastMarkup string

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		url, title, markup, err := tab.Snapshot(ctx)
		if err != nil {
			logger.Debug("browser: snapshot skipped", "error", err)
			continue
		}

		// Location first: the document-change listeners fired by SetDocument
		// re-check navigation state and should see the URL that goes with
		// the new markup.
		if url != win.URL() {
			win.SetLocationExternal(url)
		}
		if markup != lastMarkup {
			doc, err := dom.Parse(markup)
			if err != nil {
				logger.Debug("browser: unparsable markup skipped", "error", err)
			} else {
				win.SetDocument(doc)
				lastMarkup = markup
			}
		}
		if title != win.Document().Title() {
			win.Document().SetTitle(title)
		}
	}
}

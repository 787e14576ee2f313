package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// Tab is one live page under mirror.
type Tab struct {
	Page    *rod.Page
	PageURL string
	manager *Manager
}

// Attach opens a stealth page, navigates it, and waits for load. The load
// wait is best effort; a slow page still attaches.
func Attach(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Tab{Page: page, PageURL: pageURL, manager: mgr}, nil
}

// Snapshot reads the page's current location, title, and markup in one
// evaluation.
func (t *Tab) Snapshot(ctx context.Context) (url, title, markup string, err error) {
	res, err := t.Page.Context(ctx).Eval(`() => ({
		url: location.href,
		title: document.title,
		html: document.documentElement.outerHTML,
	})`)
	if err != nil {
		return "", "", "", fmt.Errorf("browser: snapshot: %w", err)
	}
	obj := res.Value
	return obj.Get("url").Str(), obj.Get("title").Str(), obj.Get("html").Str(), nil
}

// Screenshot captures the visible viewport as PNG.
func (t *Tab) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := t.Page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}

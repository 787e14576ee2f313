// Package origin decides whether an inbound cross-frame message comes from
// the trusted panel origin. The check is exact equality on
// scheme://host[:port]; anything else rejects, including a missing or
// malformed configured panel URL. Failing closed means a broken config
// silently processes no panel messages instead of processing all of them.
package origin

import (
	"log/slog"
	"net/url"
	"strings"
)

// Validator holds the single trusted origin, derived once from
// configuration and immutable for the lifetime of the page.
type Validator struct {
	trusted string
	logger  *slog.Logger
}

// New derives the trusted origin from the configured panel URL. A panel URL
// that is empty or does not parse yields an empty trusted origin, so Allow
// always returns false.
func New(panelURL string, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{trusted: normalize(panelURL), logger: logger}
}

// Trusted returns the derived origin, empty when the configuration was
// absent or malformed.
func (v *Validator) Trusted() string { return v.trusted }

// Allow reports whether the declared origin exactly equals the trusted
// panel origin. Rejection is silent towards the peer; only a Debug line is
// emitted locally.
func (v *Validator) Allow(origin string) bool {
	if v.trusted == "" || origin == "" {
		return false
	}
	if normalize(origin) != v.trusted {
		v.logger.Debug("origin: rejected sender", "origin", origin)
		return false
	}
	return true
}

// normalize reduces a URL to scheme://host[:port]. Returns "" for anything
// that does not parse into a scheme and host.
func normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

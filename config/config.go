// Package config loads the daemon configuration from YAML. Configuration
// problems are never fatal: an absent or malformed file falls back to the
// built-in defaults with a logged warning. The one deliberate exception to
// forgiveness is the panel URL: when it is missing or malformed the origin
// validator derives an empty trusted origin and rejects everything, which
// is the safe direction to fail.
package config

import (
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codenitrr/codelution/inject"
	"github.com/codenitrr/codelution/panel"
)

// Config is the top-level daemon configuration.
type Config struct {
	// PanelURL locates the embedded panel; its origin is the only trusted
	// sender on the window channel.
	PanelURL string `yaml:"panel_url"`

	// Listen is the bridge address serving the panel WebSocket.
	Listen string `yaml:"listen"`

	// DBPath is the SQLite file holding the persisted panel state.
	DBPath string `yaml:"db_path"`

	// LogLevel is debug | info | warn | error. A -log-level flag overrides it.
	LogLevel string `yaml:"log_level"`

	Restore RestoreConfig `yaml:"restore"`
	Nav     NavConfig     `yaml:"nav"`
	Inject  InjectConfig  `yaml:"inject"`
	Browser BrowserConfig `yaml:"browser"`
}

// RestoreConfig tunes the panel restore evaluation.
type RestoreConfig struct {
	// Window bounds how old a persisted "open" may be and still reopen.
	Window time.Duration `yaml:"window"`
	// Delay is the settle heuristic before reopening.
	Delay time.Duration `yaml:"delay"`
	// LoadDelay is the settle heuristic after page load-complete before the
	// first restore evaluation runs.
	LoadDelay time.Duration `yaml:"load_delay"`
}

// NavConfig tunes the navigation detector.
type NavConfig struct {
	// PollInterval is the safety-net polling frequency, covering
	// navigations none of the event-driven signals observe.
	PollInterval time.Duration `yaml:"poll_interval"`
	// SettleDelay follows a title-change hint before the URL re-check.
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// InjectConfig tunes the web component injector's registration wait.
type InjectConfig struct {
	RetryInterval time.Duration `yaml:"retry_interval"`
	// MaxAttempts caps the wait. Unset defaults to 120 (about a minute);
	// -1 waits forever.
	MaxAttempts int `yaml:"max_attempts"`
}

// BrowserConfig controls the live-page mirror.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome; empty launches a
	// local one.
	Remote string `yaml:"remote"`
	// Stealth is headless | headful.
	Stealth string `yaml:"stealth"`
	// MirrorInterval is how often the live page is mirrored into the
	// in-memory document.
	MirrorInterval time.Duration `yaml:"mirror_interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads the YAML file at path. Any problem (absent file, unreadable
// file, malformed YAML) yields the defaults with a Warn log; it never
// fails.
func Load(path string, logger *slog.Logger) *Config {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("config: read failed, using defaults", "path", path, "error", err)
		return Default()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Warn("config: parse failed, using defaults", "path", path, "error", err)
		return Default()
	}

	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8117"
	}
	if c.DBPath == "" {
		c.DBPath = "codelution.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Restore.Window <= 0 {
		c.Restore.Window = 5 * time.Minute
	}
	if c.Restore.Delay <= 0 {
		c.Restore.Delay = panel.DefaultRestoreDelay
	}
	if c.Restore.LoadDelay <= 0 {
		c.Restore.LoadDelay = 500 * time.Millisecond
	}
	if c.Nav.PollInterval <= 0 {
		c.Nav.PollInterval = time.Second
	}
	if c.Nav.SettleDelay <= 0 {
		c.Nav.SettleDelay = 100 * time.Millisecond
	}
	if c.Inject.RetryInterval <= 0 {
		c.Inject.RetryInterval = 500 * time.Millisecond
	}
	if c.Inject.MaxAttempts == 0 {
		c.Inject.MaxAttempts = inject.DefaultMaxAttempts
	}
	if c.Inject.MaxAttempts < 0 {
		c.Inject.MaxAttempts = 0 // unbounded
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.MirrorInterval <= 0 {
		c.Browser.MirrorInterval = time.Second
	}
}

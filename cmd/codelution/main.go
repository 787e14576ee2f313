// Command codelution is the page coordination daemon.
//
// Usage:
//
//	codelution -config codelution.yaml       # full config
//	codelution -url https://example.com      # mirror a live page
//	codelution                               # offline, blank in-memory page
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codenitrr/codelution/background"
	"github.com/codenitrr/codelution/bridge"
	"github.com/codenitrr/codelution/browser"
	"github.com/codenitrr/codelution/config"
	"github.com/codenitrr/codelution/content"
	"github.com/codenitrr/codelution/dom"
	"github.com/codenitrr/codelution/inject"
	"github.com/codenitrr/codelution/nav"
	"github.com/codenitrr/codelution/origin"
	"github.com/codenitrr/codelution/panel"
	"github.com/codenitrr/codelution/relay"
	"github.com/codenitrr/codelution/store"
)

func main() {
	configPath := flag.String("config", "", "path to codelution.yaml config file")
	pageURL := flag.String("url", "", "mirror a live page at this URL")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *pageURL, *logLevel); err != nil {
		slog.Error("codelution: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, pageURL, logLevel string) error {
	boot := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	cfg := config.Load(configPath, boot)

	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	states := store.NewStates(db)

	validator := origin.New(cfg.PanelURL, logger)
	if validator.Trusted() == "" {
		logger.Warn("codelution: no trusted panel origin, all panel messages will be rejected")
	}

	// The page: live-mirrored when a URL is given, blank otherwise.
	win := dom.NewWindow(dom.Blank(), "about:blank")
	var tab *browser.Tab
	if pageURL != "" {
		mgr := browser.NewManager(browser.Config{
			RemoteURL: cfg.Browser.Remote,
			Stealth:   stealthLevel(cfg.Browser.Stealth),
			Logger:    logger,
		})
		if _, err := mgr.Start(ctx); err != nil {
			return err
		}
		defer mgr.Close()

		tab, err = browser.Attach(ctx, mgr, pageURL)
		if err != nil {
			return err
		}
		defer tab.Close()
		win = dom.NewWindow(dom.Blank(), pageURL)
	}

	bus := relay.NewBus(logger)

	var screenshot func(context.Context) ([]byte, error)
	if tab != nil {
		screenshot = tab.Screenshot
	}

	// Content context, then the bridge serving its window channel.
	cc := content.New(content.Options{
		Win:        win,
		Bus:        bus,
		States:     states,
		PanelURL:   cfg.PanelURL,
		Screenshot: screenshot,
		PanelCfg: panel.Config{
			RestoreWindow: cfg.Restore.Window,
			RestoreDelay:  cfg.Restore.Delay,
			Logger:        logger,
		},
		NavCfg: nav.Config{
			PollInterval: cfg.Nav.PollInterval,
			SettleDelay:  cfg.Nav.SettleDelay,
			Logger:       logger,
		},
		InjectCfg: inject.Config{
			Interval:    cfg.Inject.RetryInterval,
			MaxAttempts: cfg.Inject.MaxAttempts,
			Logger:      logger,
		},
		LoadDelay: cfg.Restore.LoadDelay,
		Logger:    logger,
	})

	srv := bridge.NewServer(validator, cc.WindowRouter(ctx), logger)
	cc.SetPanels(srv)

	bg := background.New(bus, srv, logger)
	bus.Attach(ctx, relay.EndpointBackground, bg.Router(), 0)
	bus.Attach(ctx, relay.EndpointContent, cc.HostRouter(ctx), 0)

	cc.Start(ctx)
	if tab != nil {
		go browser.Mirror(ctx, tab, win, cfg.Browser.MirrorInterval, logger)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("codelution: bridge listening", "addr", cfg.Listen)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("codelution: shutdown", "error", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func stealthLevel(s string) browser.StealthLevel {
	if s == "headful" {
		return browser.LevelHeadful
	}
	return browser.LevelHeadless
}

// Package panel tracks the open/closed state of the embedded panel,
// persists every transition with a timestamp, and decides on page (re)load
// whether to restore it. Restoration is time-boxed: a persisted "open" older
// than the restore window is rewritten to closed instead of honoured, so an
// idle browser never resurrects a forgotten panel.
package panel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codenitrr/codelution/store"
)

// Surface is the external collaborator that owns the panel DOM. Styling,
// layout, and resize math live behind it and produce no state the machine
// depends on.
type Surface interface {
	// Ensure creates the panel DOM when absent (page reloads drop it).
	Ensure()
	Show()
	Hide()
}

// Config tunes the machine. Zero values get defaults: 5 minute restore
// window, 250ms restore delay.
type Config struct {
	// RestoreWindow bounds how old a persisted "open" may be and still
	// reopen the panel.
	RestoreWindow time.Duration
	// RestoreDelay is the settle heuristic before reopening: it lets the
	// page DOM and companion contexts finish initialising. Not a
	// correctness-critical wait.
	RestoreDelay time.Duration
	Logger       *slog.Logger
}

func (c *Config) defaults() {
	if c.RestoreWindow <= 0 {
		c.RestoreWindow = 5 * time.Minute
	}
	if c.RestoreDelay < 0 {
		c.RestoreDelay = 0
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// DefaultRestoreDelay is applied by config loading when nothing is set.
const DefaultRestoreDelay = 250 * time.Millisecond

// Machine is the two-state (open/closed) panel visibility machine of one
// content context.
type Machine struct {
	states  *store.States
	surface Surface
	cfg     Config
	logger  *slog.Logger

	mu   sync.Mutex
	open bool
}

// NewMachine creates a Machine starting closed.
func NewMachine(states *store.States, surface Surface, cfg Config) *Machine {
	cfg.defaults()
	return &Machine{
		states:  states,
		surface: surface,
		cfg:     cfg,
		logger:  cfg.Logger,
	}
}

// IsOpen answers the current in-memory state.
func (m *Machine) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Toggle flips the state and persists the transition.
func (m *Machine) Toggle(ctx context.Context, url string) error {
	m.mu.Lock()
	open := !m.open
	m.open = open
	m.mu.Unlock()

	if open {
		m.surface.Ensure()
		m.surface.Show()
	} else {
		m.surface.Hide()
	}
	return m.persist(ctx, open, url)
}

// Open opens the panel (no-op when already open) and persists.
func (m *Machine) Open(ctx context.Context, url string) error {
	m.mu.Lock()
	if m.open {
		m.mu.Unlock()
		return nil
	}
	m.open = true
	m.mu.Unlock()

	m.surface.Ensure()
	m.surface.Show()
	return m.persist(ctx, true, url)
}

// Restore is the evaluation run on page load-complete and on tab
// activation/update. Persisted closed state needs no action; persisted open
// state reopens when fresh and self-heals to closed when stale.
func (m *Machine) Restore(ctx context.Context, url string) error {
	st, found, err := m.states.Get(ctx)
	if err != nil {
		return err
	}
	if !found || !st.IsOpen {
		return nil
	}

	if !st.Fresh(time.Now(), m.cfg.RestoreWindow) {
		m.logger.Info("panel: persisted state stale, self-healing to closed",
			"age_ms", time.Now().UnixMilli()-st.LastStateChange)
		m.mu.Lock()
		m.open = false
		m.mu.Unlock()
		return m.persist(ctx, false, url)
	}

	// Let the page and companion contexts settle before reopening.
	if m.cfg.RestoreDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.RestoreDelay):
		}
	}

	m.mu.Lock()
	m.open = true
	m.mu.Unlock()
	m.surface.Ensure()
	m.surface.Show()
	m.logger.Info("panel: restored open state", "url", url)
	return m.persist(ctx, true, url)
}

func (m *Machine) persist(ctx context.Context, open bool, url string) error {
	return m.states.Put(ctx, store.PanelState{IsOpen: open, URL: url})
}

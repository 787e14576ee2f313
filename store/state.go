package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PanelState is the single persisted record shared across all tabs.
type PanelState struct {
	IsOpen bool   `json:"sidebarOpen"`
	URL    string `json:"sidebarUrl"`
	// LastStateChange is set on every write, in milliseconds.
	LastStateChange int64 `json:"lastStateChange"`
}

// Fresh reports whether the state was written within the restore window.
func (s PanelState) Fresh(now time.Time, window time.Duration) bool {
	return now.UnixMilli()-s.LastStateChange < window.Milliseconds()
}

// States wraps the panel_state table.
type States struct {
	db *sql.DB
}

// NewStates creates the accessor over an opened database.
func NewStates(db *sql.DB) *States {
	return &States{db: db}
}

// Put fully overwrites the record and stamps LastStateChange with the
// current time when the caller left it zero. Never a partial field patch.
func (s *States) Put(ctx context.Context, st PanelState) error {
	if st.LastStateChange == 0 {
		st.LastStateChange = time.Now().UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO panel_state (id, sidebar_open, sidebar_url, last_state_change)
		VALUES (1, ?, ?, ?)`,
		st.IsOpen, st.URL, st.LastStateChange)
	if err != nil {
		return fmt.Errorf("store: put panel state: %w", err)
	}
	return nil
}

// Get reads the record. The second return is false when nothing has been
// persisted yet.
func (s *States) Get(ctx context.Context) (PanelState, bool, error) {
	var st PanelState
	err := s.db.QueryRowContext(ctx, `
		SELECT sidebar_open, sidebar_url, last_state_change
		FROM panel_state WHERE id = 1`).
		Scan(&st.IsOpen, &st.URL, &st.LastStateChange)
	if errors.Is(err, sql.ErrNoRows) {
		return PanelState{}, false, nil
	}
	if err != nil {
		return PanelState{}, false, fmt.Errorf("store: get panel state: %w", err)
	}
	return st, true, nil
}

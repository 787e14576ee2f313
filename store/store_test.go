package store

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func TestGet_Empty(t *testing.T) {
	states := NewStates(OpenMemory(t))

	_, found, err := states.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("found a record in an empty store")
	}
}

func TestPut_FullyOverwrites(t *testing.T) {
	ctx := context.Background()
	states := NewStates(OpenMemory(t))

	if err := states.Put(ctx, PanelState{IsOpen: true, URL: "https://a.example", LastStateChange: 100}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// The second write carries no URL; after the overwrite the old URL must
	// be gone, not merged.
	if err := states.Put(ctx, PanelState{IsOpen: false, LastStateChange: 200}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	st, found, err := states.Get(ctx)
	if err != nil || !found {
		t.Fatalf("Get: %v found=%v", err, found)
	}
	if st.IsOpen || st.URL != "" || st.LastStateChange != 200 {
		t.Errorf("state: got %+v, want fully overwritten record", st)
	}
}

func TestPut_StampsTimestamp(t *testing.T) {
	ctx := context.Background()
	states := NewStates(OpenMemory(t))

	before := time.Now().UnixMilli()
	if err := states.Put(ctx, PanelState{IsOpen: true, URL: "https://a.example"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	st, _, err := states.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.LastStateChange < before {
		t.Errorf("LastStateChange: got %d, want >= %d", st.LastStateChange, before)
	}
}

func TestFresh(t *testing.T) {
	now := time.Now()
	window := 5 * time.Minute

	fresh := PanelState{LastStateChange: now.Add(-time.Minute).UnixMilli()}
	if !fresh.Fresh(now, window) {
		t.Error("1 minute old state reported stale")
	}

	stale := PanelState{LastStateChange: now.Add(-10 * time.Minute).UnixMilli()}
	if stale.Fresh(now, window) {
		t.Error("10 minute old state reported fresh")
	}

	boundary := PanelState{LastStateChange: now.Add(-window).UnixMilli()}
	if boundary.Fresh(now, window) {
		t.Error("state exactly at the window boundary reported fresh")
	}
}

func TestOpen_OptionsOverridePragmas(t *testing.T) {
	db, err := Open(":memory:",
		WithMaxOpenConns(1),
		WithJournalMode("MEMORY"),
		WithBusyTimeout(2*time.Second),
		WithSynchronous("OFF"),
	)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "memory" {
		t.Errorf("journal_mode: got %q, want %q", mode, "memory")
	}

	var timeout int64
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if timeout != 2000 {
		t.Errorf("busy_timeout: got %d, want 2000", timeout)
	}

	// The schema applies regardless of options.
	states := NewStates(db)
	if _, _, err := states.Get(context.Background()); err != nil {
		t.Errorf("Get on optioned database: %v", err)
	}
}

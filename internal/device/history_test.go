package device

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/iotbridge-core/internal/state"
)

// setupHistoryDB creates an in-memory SQLite database with the
// state_history table.
func setupHistoryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE state_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			state TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT 'adapter',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE INDEX idx_state_history_device ON state_history(device_id, created_at DESC);`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

func TestRecordStateChange_AndGetHistory(t *testing.T) {
	repo := NewSQLiteStateHistoryRepository(setupHistoryDB(t))
	ctx := context.Background()

	states := []state.State{
		{"power": "off"},
		{"power": "on", "brightness": float64(40)},
		{"power": "on", "brightness": float64(80)},
	}
	for _, st := range states {
		if err := repo.RecordStateChange(ctx, "lamp-1", st, StateHistorySourceAdapter); err != nil {
			t.Fatalf("RecordStateChange() error = %v", err)
		}
	}
	if err := repo.RecordStateChange(ctx, "other-device", state.State{"power": "on"}, StateHistorySourceCommand); err != nil {
		t.Fatalf("RecordStateChange() error = %v", err)
	}

	entries, err := repo.GetHistory(ctx, "lamp-1", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("GetHistory() returned %d entries, want 3", len(entries))
	}

	// Newest first.
	if entries[0].State["brightness"] != float64(80) {
		t.Errorf("entries[0].State = %v, want brightness=80", entries[0].State)
	}
	if entries[0].Source != StateHistorySourceAdapter {
		t.Errorf("entries[0].Source = %q, want adapter", entries[0].Source)
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("entries[0].CreatedAt is zero")
	}
}

func TestRecordStateChange_Validation(t *testing.T) {
	repo := NewSQLiteStateHistoryRepository(setupHistoryDB(t))

	if err := repo.RecordStateChange(context.Background(), "", state.State{}, ""); err == nil {
		t.Error("RecordStateChange() with empty device id should fail")
	}

	// Nil state and empty source fall back to defaults rather than failing.
	if err := repo.RecordStateChange(context.Background(), "lamp-1", nil, ""); err != nil {
		t.Errorf("RecordStateChange(nil state) error = %v", err)
	}

	entries, err := repo.GetHistory(context.Background(), "lamp-1", 1)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Source != StateHistorySourceAdapter {
		t.Errorf("entries = %v, want one adapter-sourced entry", entries)
	}
}

func TestGetHistory_LimitClamped(t *testing.T) {
	repo := NewSQLiteStateHistoryRepository(setupHistoryDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.RecordStateChange(ctx, "lamp-1", state.State{"seq": float64(i)}, StateHistorySourceAdapter); err != nil {
			t.Fatalf("RecordStateChange() error = %v", err)
		}
	}

	entries, err := repo.GetHistory(ctx, "lamp-1", 2)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("GetHistory(limit=2) returned %d entries", len(entries))
	}

	// Zero limit falls back to the default rather than returning nothing.
	entries, err = repo.GetHistory(ctx, "lamp-1", 0)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("GetHistory(limit=0) returned %d entries, want 5", len(entries))
	}
}

func TestPruneHistory(t *testing.T) {
	db := setupHistoryDB(t)
	repo := NewSQLiteStateHistoryRepository(db)
	ctx := context.Background()

	// Seed one old row directly and one fresh row through the repository.
	old := time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339)
	if _, err := db.Exec(
		"INSERT INTO state_history (device_id, state, source, created_at) VALUES (?, ?, ?, ?)",
		"lamp-1", `{"power":"off"}`, StateHistorySourceAdapter, old,
	); err != nil {
		t.Fatalf("seeding old row: %v", err)
	}
	if err := repo.RecordStateChange(ctx, "lamp-1", state.State{"power": "on"}, StateHistorySourceAdapter); err != nil {
		t.Fatalf("RecordStateChange() error = %v", err)
	}

	deleted, err := repo.PruneHistory(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneHistory() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("PruneHistory() deleted %d rows, want 1", deleted)
	}

	if _, err := repo.PruneHistory(ctx, 0); err == nil {
		t.Error("PruneHistory(0) should fail")
	}
}

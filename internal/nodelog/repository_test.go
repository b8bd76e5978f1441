package nodelog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/dmx-core/internal/infrastructure/database"
)

// openTestRepo creates a temporary database with the node_events schema.
func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(context.Background(), `
		CREATE TABLE node_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   TEXT NOT NULL,
			event_type  TEXT NOT NULL,
			node_ip     TEXT NOT NULL,
			bind_index  INTEGER NOT NULL DEFAULT 0,
			short_name  TEXT NOT NULL DEFAULT '',
			long_name   TEXT NOT NULL DEFAULT '',
			address     TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		t.Fatalf("creating node_events table: %v", err)
	}

	return NewSQLiteRepository(db.DB)
}

func TestCreateAssignsIDAndTimestamp(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	event := &Event{
		EventType: EventDiscovered,
		NodeIP:    "192.168.1.50",
		BindIndex: 1,
		ShortName: "dimmer-rack",
		Address:   "0/0/1",
	}

	if err := repo.Create(ctx, event); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if event.ID == 0 {
		t.Error("Create() did not assign an ID")
	}
	if event.Timestamp.IsZero() {
		t.Error("Create() did not assign a timestamp")
	}
}

func TestCreatePreservesExplicitTimestamp(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	event := &Event{
		Timestamp: ts,
		EventType: EventLost,
		NodeIP:    "192.168.1.51",
	}

	if err := repo.Create(ctx, event); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(result.Events) != 1 {
		t.Fatalf("List() returned %d events, want 1", len(result.Events))
	}
	if !result.Events[0].Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", result.Events[0].Timestamp, ts)
	}
}

func TestListOrdersMostRecentFirst(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for i, typ := range []string{EventDiscovered, EventUpdated, EventLost} {
		event := &Event{
			Timestamp: time.Date(2026, 8, 1, 12, i, 0, 0, time.UTC),
			EventType: typ,
			NodeIP:    "192.168.1.50",
		}
		if err := repo.Create(ctx, event); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if result.Total != 3 {
		t.Errorf("Total = %d, want 3", result.Total)
	}
	if len(result.Events) != 3 {
		t.Fatalf("List() returned %d events, want 3", len(result.Events))
	}
	if result.Events[0].EventType != EventLost {
		t.Errorf("first event = %q, want %q", result.Events[0].EventType, EventLost)
	}
	if result.Events[2].EventType != EventDiscovered {
		t.Errorf("last event = %q, want %q", result.Events[2].EventType, EventDiscovered)
	}
}

func TestListFilters(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	events := []*Event{
		{EventType: EventDiscovered, NodeIP: "192.168.1.50"},
		{EventType: EventLost, NodeIP: "192.168.1.50"},
		{EventType: EventDiscovered, NodeIP: "192.168.1.51"},
	}
	for _, e := range events {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	t.Run("by event type", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{EventType: EventDiscovered})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Total != 2 {
			t.Errorf("Total = %d, want 2", result.Total)
		}
	})

	t.Run("by node IP", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{NodeIP: "192.168.1.51"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Total != 1 {
			t.Errorf("Total = %d, want 1", result.Total)
		}
	})

	t.Run("combined", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{EventType: EventLost, NodeIP: "192.168.1.51"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Total != 0 {
			t.Errorf("Total = %d, want 0", result.Total)
		}
		if result.Events == nil {
			t.Error("Events should be empty slice, not nil")
		}
	})
}

func TestListPagination(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		event := &Event{EventType: EventUpdated, NodeIP: "192.168.1.50"}
		if err := repo.Create(ctx, event); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	result, err := repo.List(ctx, Filter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if result.Total != 5 {
		t.Errorf("Total = %d, want 5", result.Total)
	}
	if len(result.Events) != 2 {
		t.Errorf("List() returned %d events, want 2", len(result.Events))
	}
	if result.Limit != 2 || result.Offset != 2 {
		t.Errorf("Limit/Offset = %d/%d, want 2/2", result.Limit, result.Offset)
	}
}

// Package nodelog provides access to the node_events table for
// recording and querying Art-Net node lifecycle history.
package nodelog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Event types recorded in the node event log.
const (
	EventDiscovered = "discovered"
	EventUpdated    = "updated"
	EventLost       = "lost"
)

// Event represents a single node lifecycle entry.
type Event struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	NodeIP    string    `json:"node_ip"`
	BindIndex int       `json:"bind_index"`
	ShortName string    `json:"short_name,omitempty"`
	LongName  string    `json:"long_name,omitempty"`
	Address   string    `json:"address,omitempty"`
}

// Filter controls which node events to return.
type Filter struct {
	EventType string // optional: filter by event type (discovered, updated, lost)
	NodeIP    string // optional: filter by node IP
	Limit     int    // default 50, max 200
	Offset    int    // pagination offset
}

// ListResult contains the paginated node event results.
type ListResult struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// Repository defines the interface for node event operations.
type Repository interface {
	Create(ctx context.Context, event *Event) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores node events in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new node event repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new node event. The Timestamp is generated if zero,
// and the assigned row ID is written back to the event.
func (r *SQLiteRepository) Create(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO node_events (timestamp, event_type, node_ip, bind_index, short_name, long_name, address)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.Timestamp.Format(time.RFC3339),
		event.EventType, event.NodeIP, event.BindIndex,
		event.ShortName, event.LongName, event.Address,
	)
	if err != nil {
		return fmt.Errorf("inserting node event: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		event.ID = id
	}

	return nil
}

// List returns node events matching the filter, ordered by most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for node event queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.EventType != "" {
		conditions = append(conditions, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.NodeIP != "" {
		conditions = append(conditions, "node_ip = ?")
		args = append(args, filter.NodeIP)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Get total count.
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM node_events %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting node events: %w", err)
	}

	// Get paginated results.
	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, timestamp, event_type, node_ip, bind_index, short_name, long_name, address FROM node_events %s ORDER BY id DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying node events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var timestamp string

		if err := rows.Scan(&event.ID, &timestamp, &event.EventType,
			&event.NodeIP, &event.BindIndex, &event.ShortName,
			&event.LongName, &event.Address); err != nil {
			return nil, fmt.Errorf("scanning node event: %w", err)
		}

		t, err := time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return nil, fmt.Errorf("parsing node event timestamp %q: %w", timestamp, err)
		}
		event.Timestamp = t

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating node events: %w", err)
	}

	if events == nil {
		events = []Event{}
	}

	return &ListResult{
		Events: events,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

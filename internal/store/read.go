package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dolu89/ghost-relay/internal/nostr"
)

// ReadAllEvents returns every stored event, newest first with id as the
// tiebreak.
//
// Returns an empty slice (not nil) if the table is empty.
func (s *Store) ReadAllEvents(ctx context.Context) ([]nostr.Event, error) {
	return s.readEvents(ctx, `
		SELECT data FROM events
		ORDER BY created_at DESC, id COLLATE BINARY ASC
	`)
}

// ReadRecentEvents returns at most limit events, newest first.
// A non-positive limit returns everything.
func (s *Store) ReadRecentEvents(ctx context.Context, limit int) ([]nostr.Event, error) {
	if limit <= 0 {
		return s.ReadAllEvents(ctx)
	}
	return s.readEvents(ctx, `
		SELECT data FROM events
		ORDER BY created_at DESC, id COLLATE BINARY ASC
		LIMIT ?
	`, limit)
}

// ReadEvent retrieves a single event by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadEvent(ctx context.Context, id string) (nostr.Event, error) {
	var data string
	if err := s.db.QueryRowContext(ctx, `SELECT data FROM events WHERE id = ?`, id).Scan(&data); err != nil {
		return nostr.Event{}, err
	}
	return unmarshalEvent(data)
}

// CountEvents returns the number of stored events.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func (s *Store) readEvents(ctx context.Context, query string, args ...any) ([]nostr.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []nostr.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

// scanEvent scans a data column into an event.
func scanEvent(rows *sql.Rows) (nostr.Event, error) {
	var data string
	if err := rows.Scan(&data); err != nil {
		return nostr.Event{}, fmt.Errorf("scan event: %w", err)
	}
	return unmarshalEvent(data)
}

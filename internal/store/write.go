package store

import (
	"context"
	"fmt"

	"github.com/Dolu89/ghost-relay/internal/nostr"
)

// PutEvent inserts an event row.
// Uses ON CONFLICT(id) DO NOTHING and reports ErrDuplicate when no row was
// inserted, so a duplicate never overwrites the stored copy.
func (s *Store) PutEvent(ctx context.Context, ev nostr.Event) error {
	data, err := marshalEvent(ev)
	if err != nil {
		return fmt.Errorf("put event: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, data, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, ev.ID, data, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("put event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("put event: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("put event %s: %w", ev.ID, ErrDuplicate)
	}

	return nil
}

// DeleteEvent removes an event row. Deleting an absent id is not an error;
// the returned bool reports whether a row was removed.
func (s *Store) DeleteEvent(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete event: rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

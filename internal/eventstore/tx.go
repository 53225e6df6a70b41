package eventstore

import (
	"context"

	"github.com/Dolu89/ghost-relay/internal/nostr"
)

// Tx is a view of a Store held under its exclusive lock. It is handed to
// listeners and Do callbacks and must not be retained after they return.
type Tx struct {
	s    *Store
	done bool
}

// Query is Store.Query without re-acquiring the lock.
func (tx *Tx) Query(f nostr.Filter) ([]nostr.Event, error) {
	if tx.done {
		return nil, ErrClosedTx
	}
	return tx.s.query(f), nil
}

// Exists is Store.Exists without re-acquiring the lock.
func (tx *Tx) Exists(id string) bool {
	if tx.done {
		return false
	}
	_, ok := tx.s.events[id]
	return ok
}

// Remove is Store.Remove without re-acquiring the lock.
func (tx *Tx) Remove(ctx context.Context, id string) (bool, error) {
	if tx.done {
		return false, ErrClosedTx
	}
	return tx.s.remove(ctx, id)
}

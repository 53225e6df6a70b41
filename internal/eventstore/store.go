package eventstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Dolu89/ghost-relay/internal/nostr"
	"github.com/Dolu89/ghost-relay/internal/store"
)

// Table is the durable keyed table behind a Store.
// Implemented by *store.Store.
type Table interface {
	PutEvent(ctx context.Context, ev nostr.Event) error
	DeleteEvent(ctx context.Context, id string) (bool, error)
	ReadAllEvents(ctx context.Context) ([]nostr.Event, error)
}

// Listener is notified of every successfully added event.
//
// OnEvent runs inside Add's critical section: it must not block and must
// reach the store only through tx.
type Listener interface {
	OnEvent(ctx context.Context, tx *Tx, ev nostr.Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, tx *Tx, ev nostr.Event)

// OnEvent implements Listener.
func (f ListenerFunc) OnEvent(ctx context.Context, tx *Tx, ev nostr.Event) {
	f(ctx, tx, ev)
}

// ListenerHandle identifies a registered listener for Unsubscribe.
type ListenerHandle uint64

type listenerEntry struct {
	handle   ListenerHandle
	listener Listener
}

// Store is the in-memory event index over a durable Table.
// Safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	table     Table
	events    map[string]nostr.Event
	listeners []listenerEntry // registration order
	nextID    ListenerHandle
	logger    *slog.Logger
}

// New creates a Store and loads every event held by table into memory.
func New(ctx context.Context, table Table, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	events, err := table.ReadAllEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	s := &Store{
		table:  table,
		events: make(map[string]nostr.Event, len(events)),
		logger: logger.With("component", "eventstore"),
	}
	for _, ev := range events {
		s.events[ev.ID] = ev
	}
	s.logger.Debug("loaded events from the database", "count", len(s.events))

	return s, nil
}

// Add stores ev and notifies every listener before returning.
// A listener that panics does not stop the others or fail the add.
//
// Returns ErrDuplicateEvent if the id is already present. If the durable
// write fails the event is not indexed and no listener runs.
func (s *Store) Add(ctx context.Context, ev nostr.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[ev.ID]; ok {
		s.logger.Debug("event already exists", "event_id", ev.ID)
		return fmt.Errorf("add event %s: %w", ev.ID, ErrDuplicateEvent)
	}

	if err := s.table.PutEvent(ctx, ev); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("add event %s: %w", ev.ID, ErrDuplicateEvent)
		}
		return fmt.Errorf("add event %s: persist: %w", ev.ID, err)
	}
	s.events[ev.ID] = ev
	s.logger.Debug("added event", "event_id", ev.ID, "listeners", len(s.listeners))

	tx := &Tx{s: s}
	for _, entry := range s.listeners {
		s.notify(ctx, tx, entry, ev)
	}
	tx.done = true

	return nil
}

// notify runs one listener. A panicking listener is logged and skipped so
// the remaining listeners still see ev.
func (s *Store) notify(ctx context.Context, tx *Tx, entry listenerEntry, ev nostr.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recovered panic in listener",
				"listener", entry.handle,
				"event_id", ev.ID,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	entry.listener.OnEvent(ctx, tx, ev)
}

// Query returns the stored events matching f, newest first, truncated to
// f.Limit when it is positive.
func (s *Store) Query(f nostr.Filter) []nostr.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query(f)
}

// Remove deletes id from the index and the durable table.
//
// Remove is compare-and-delete: it reports true only to the one caller that
// actually removed the event. Removing an absent id is a no-op returning
// false. A durable delete failure is returned alongside true; the event is
// gone from memory either way.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(ctx, id)
}

// Exists reports whether id is currently stored.
func (s *Store) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.events[id]
	return ok
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Subscribe registers l for new-event notifications. Listeners are notified
// in registration order.
func (s *Store) Subscribe(l Listener) ListenerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	handle := s.nextID
	s.listeners = append(s.listeners, listenerEntry{handle: handle, listener: l})
	return handle
}

// Unsubscribe removes the listener registered under h. Unknown handles are
// ignored. The returned bool reports whether a listener was removed.
func (s *Store) Unsubscribe(h ListenerHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.listeners {
		if entry.handle == h {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Listeners returns the number of registered listeners.
func (s *Store) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Do runs fn with exclusive access to the store. No Add or Remove can
// interleave with fn.
func (s *Store) Do(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{s: s}
	defer func() { tx.done = true }()
	return fn(tx)
}

func (s *Store) query(f nostr.Filter) []nostr.Event {
	matched := make([]nostr.Event, 0)
	for _, ev := range s.events {
		if f.Matches(ev) {
			matched = append(matched, ev)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt != matched[j].CreatedAt {
			return matched[i].CreatedAt > matched[j].CreatedAt
		}
		return matched[i].ID < matched[j].ID
	})

	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched
}

func (s *Store) remove(ctx context.Context, id string) (bool, error) {
	if _, ok := s.events[id]; !ok {
		return false, nil
	}
	delete(s.events, id)
	s.logger.Debug("removed event", "event_id", id)

	if _, err := s.table.DeleteEvent(ctx, id); err != nil {
		return true, fmt.Errorf("remove event %s: %w", id, err)
	}
	return true, nil
}

// Package store provides the SQLite-backed durable table behind the relay's
// event store.
//
// The table is a plain keyed map of event id to serialized event:
//   - events: id TEXT PRIMARY KEY, data TEXT (the event as JSON),
//     created_at INTEGER (denormalized for ordering, added in schema v1)
//
// Rows exist only for events that have not been delivered yet. The relay
// deletes a row the moment its event is consumed by a subscriber, so this
// package never updates rows in place.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Path ":memory:" opens a private in-memory database; the connection pool is
// pinned to one connection so it lives as long as the Store.
package store

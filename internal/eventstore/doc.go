// Package eventstore is the relay's authoritative event index.
//
// A Store keeps every not-yet-delivered event in memory, mirrors each change to
// a durable Table, and owns the listener registry that live fan-out runs on.
//
// # Exclusive access
//
// One mutex serializes every mutation and every fan-out. Add persists,
// indexes and then calls each listener synchronously before releasing the
// lock, so no other Add or Remove can interleave with a listener's consumption
// decision. Listeners and Do callbacks receive a *Tx that operates on the
// store without re-acquiring the lock; a Tx is dead once its callback returns.
//
// # Single consumption
//
// Remove is compare-and-delete: exactly one caller observes true for a given
// id. Callers claim an event with Remove before delivering it and skip
// delivery when the claim fails, which makes delivery at-most-once across the
// whole process.
package eventstore

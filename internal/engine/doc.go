// Package engine implements the relay's per-connection core: the
// subscription registry, the delivery engine and the session state machine.
//
// ARCHITECTURE:
//
// One Session per client connection. A Session owns a Registry and is
// registered as a listener on the shared eventstore.Store for as long as the
// connection is open. Outbound frames go to a Sender, normally an Outbox
// drained by the transport's write pump.
//
// Delivery has two triggers:
//  1. Replay: a successful REQ queries the store for each of its filters and
//     consumes every match, then sends EOSE. Registration, replay and EOSE run
//     in one eventstore.Store.Do call so no concurrent Add interleaves.
//  2. Live fan-out: every successful Add calls OnEvent on each session while
//     the store lock is held. The first matching subscription of a session
//     claims the event with Tx.Remove and delivers it only if the claim won.
//
// CRITICAL PATTERNS:
//
// Consume-on-delivery: an event is delivered to exactly one subscription, ever.
// Every delivery path claims before it sends, and Tx.Remove reports true to
// one caller only.
//
// Lock order: store lock, then registry lock. Nothing takes them in reverse,
// and no Sender call blocks.
package engine

// Package testutil holds deterministic fixtures shared by the relay's tests:
// fixed secret keys, signed-event builders, a created_at clock, sequential
// session ids and a frame recorder standing in for a client connection.
package testutil

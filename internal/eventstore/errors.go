package eventstore

import "errors"

var (
	// ErrDuplicateEvent is returned by Add when the id is already stored.
	ErrDuplicateEvent = errors.New("event already exists")

	// ErrClosedTx is returned when a Tx is used after its callback returned.
	ErrClosedTx = errors.New("transaction already finished")
)

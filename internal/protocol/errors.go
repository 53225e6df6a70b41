package protocol

import "fmt"

// ErrorKind categorizes decode failures.
type ErrorKind string

const (
	// KindMalformedFrame means the frame is not a JSON array of at least two
	// elements with a known string label.
	KindMalformedFrame ErrorKind = "MALFORMED_FRAME"

	// KindInvalidFilter means a REQ carried a filter that is not a
	// well-formed filter object.
	KindInvalidFilter ErrorKind = "INVALID_FILTER"

	// KindInvalidSubscriptionID means a REQ or CLOSE subscription id is not a
	// non-empty string.
	KindInvalidSubscriptionID ErrorKind = "INVALID_SUBSCRIPTION_ID"

	// KindInvalidEvent means an EVENT payload could not be decoded as an event.
	KindInvalidEvent ErrorKind = "INVALID_EVENT"
)

// Error is a decode failure. Message is suitable for a client-facing notice
// or OK reason.
type Error struct {
	Kind    ErrorKind
	Message string

	// EventID is the id found in a rejected EVENT payload, if any.
	EventID string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

const unparseable = "unparseable message"

func malformed() *Error {
	return &Error{Kind: KindMalformedFrame, Message: unparseable}
}

package protocol

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/Dolu89/ghost-relay/internal/nostr"
)

// Command labels.
const (
	LabelReq    = "REQ"
	LabelEvent  = "EVENT"
	LabelClose  = "CLOSE"
	LabelEOSE   = "EOSE"
	LabelOK     = "OK"
	LabelNotice = "NOTICE"
)

// Envelope is a decoded client frame: *ReqEnvelope, *EventEnvelope or
// *CloseEnvelope.
type Envelope interface {
	Label() string
}

// ReqEnvelope is ["REQ", <subscription id>, <filter>...].
type ReqEnvelope struct {
	SubscriptionID string
	Filters        nostr.Filters
}

// Label implements Envelope.
func (*ReqEnvelope) Label() string { return LabelReq }

// EventEnvelope is ["EVENT", <event>].
type EventEnvelope struct {
	Event nostr.Event
}

// Label implements Envelope.
func (*EventEnvelope) Label() string { return LabelEvent }

// CloseEnvelope is ["CLOSE", <subscription id>].
type CloseEnvelope struct {
	SubscriptionID string
}

// Label implements Envelope.
func (*CloseEnvelope) Label() string { return LabelClose }

// Decode parses a client frame. Failures are returned as *Error.
func Decode(raw []byte) (Envelope, error) {
	var parts []jsoniter.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil || len(parts) < 2 {
		return nil, malformed()
	}

	var label string
	if err := json.Unmarshal(parts[0], &label); err != nil {
		return nil, malformed()
	}

	switch label {
	case LabelReq:
		return decodeReq(parts[1:])
	case LabelEvent:
		return decodeEvent(parts[1])
	case LabelClose:
		id, err := decodeSubscriptionID(parts[1])
		if err != nil {
			return nil, err
		}
		return &CloseEnvelope{SubscriptionID: id}, nil
	default:
		return nil, malformed()
	}
}

func decodeReq(args []jsoniter.RawMessage) (*ReqEnvelope, error) {
	id, err := decodeSubscriptionID(args[0])
	if err != nil {
		return nil, err
	}

	env := &ReqEnvelope{SubscriptionID: id, Filters: make(nostr.Filters, 0, len(args)-1)}
	for _, raw := range args[1:] {
		// Called directly: json.Unmarshal would flatten the field error
		// into decoder text.
		var f nostr.Filter
		if err := f.UnmarshalJSON(raw); err != nil {
			return nil, &Error{Kind: KindInvalidFilter, Message: "invalid filter: " + err.Error()}
		}
		env.Filters = append(env.Filters, f)
	}
	return env, nil
}

func decodeSubscriptionID(raw jsoniter.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(raw, &id); err != nil || id == "" {
		return "", &Error{Kind: KindInvalidSubscriptionID, Message: "subscription id must be a non-empty string"}
	}
	return id, nil
}

func decodeEvent(raw jsoniter.RawMessage) (*EventEnvelope, error) {
	var ev nostr.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, &Error{
			Kind:    KindInvalidEvent,
			Message: "invalid: malformed event",
			EventID: salvageID(raw),
		}
	}
	return &EventEnvelope{Event: ev}, nil
}

// salvageID extracts a string "id" from a payload that failed to decode so
// the OK reply can still name the event.
func salvageID(raw jsoniter.RawMessage) string {
	var probe struct {
		ID jsoniter.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	var id string
	if err := json.Unmarshal(probe.ID, &id); err != nil {
		return ""
	}
	return id
}

package store

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/Dolu89/ghost-relay/internal/nostr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// marshalEvent converts an event to the JSON TEXT stored in events.data.
func marshalEvent(ev nostr.Event) (string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(data), nil
}

// unmarshalEvent parses events.data back into an event.
func unmarshalEvent(data string) (nostr.Event, error) {
	var ev nostr.Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return nostr.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return ev, nil
}

package protocol

import "github.com/Dolu89/ghost-relay/internal/nostr"

// Level is the severity prefix of a NOTICE message.
type Level string

const (
	LevelError   Level = "ERROR"
	LevelWarning Level = "WARNING"
	LevelInfo    Level = "INFO"
)

// EncodeEvent encodes ["EVENT", subID, ev].
func EncodeEvent(subID string, ev nostr.Event) ([]byte, error) {
	return json.Marshal([]any{LabelEvent, subID, ev})
}

// EncodeEOSE encodes ["EOSE", subID].
func EncodeEOSE(subID string) ([]byte, error) {
	return json.Marshal([]any{LabelEOSE, subID})
}

// EncodeOK encodes ["OK", eventID, ok, message].
func EncodeOK(eventID string, ok bool, message string) ([]byte, error) {
	return json.Marshal([]any{LabelOK, eventID, ok, message})
}

// EncodeNotice encodes ["NOTICE", "<LEVEL>: <message>"].
func EncodeNotice(level Level, message string) ([]byte, error) {
	return json.Marshal([]any{LabelNotice, string(level) + ": " + message})
}

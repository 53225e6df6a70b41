package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dolu89/ghost-relay/internal/nostr"
)

// EventSpec describes an event to sign. Zero Kind defaults to 1.
type EventSpec struct {
	CreatedAt int64
	Kind      int
	Tags      nostr.Tags
	Content   string
}

// SignedEvent builds and signs an event with key. BIP-340 signing uses a
// deterministic nonce, so the same spec and key always yield the same id
// and signature.
func SignedEvent(t testing.TB, key Key, spec EventSpec) nostr.Event {
	t.Helper()
	kind := spec.Kind
	if kind == 0 {
		kind = 1
	}
	ev := nostr.Event{
		CreatedAt: spec.CreatedAt,
		Kind:      kind,
		Tags:      spec.Tags,
		Content:   spec.Content,
	}
	require.NoError(t, nostr.Sign(&ev, key.Secret), "sign event")
	return ev
}

// Frame builds a client frame from its elements, failing the test if any
// element cannot be encoded.
func Frame(t testing.TB, parts ...any) []byte {
	t.Helper()
	data, err := json.Marshal(parts)
	require.NoError(t, err, "encode frame")
	return data
}

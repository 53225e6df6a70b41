package store

import (
	"path/filepath"
	"testing"

	"github.com/Dolu89/ghost-relay/internal/nostr"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEvent creates an unsigned event with the fields the table cares about.
func createTestEvent(id string, createdAt int64) nostr.Event {
	return nostr.Event{
		ID:        id,
		PubKey:    "pk-test",
		CreatedAt: createdAt,
		Kind:      1,
		Tags:      nostr.Tags{{"p", "someone"}},
		Content:   "content of " + id,
		Sig:       "sig-test",
	}
}

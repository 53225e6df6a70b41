package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dolu89/ghost-relay/internal/nostr"
	"github.com/Dolu89/ghost-relay/internal/store"
)

func seedDatabase(t *testing.T, events ...nostr.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ghost.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	for _, ev := range events {
		require.NoError(t, st.PutEvent(context.Background(), ev))
	}
	require.NoError(t, st.Close())
	return path
}

func runEventsCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewEventsCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestEventsMissingDatabaseFlag(t *testing.T) {
	_, err := runEventsCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

func TestEventsDatabaseNotFound(t *testing.T) {
	_, err := runEventsCommand(t, "text", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestEventsNegativeLimit(t *testing.T) {
	_, err := runEventsCommand(t, "text", "--db", seedDatabase(t), "--limit", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestEventsEmpty(t *testing.T) {
	out, err := runEventsCommand(t, "text", "--db", seedDatabase(t))
	require.NoError(t, err)
	assert.Equal(t, "No events stored.\n", out)
}

func TestEventsText(t *testing.T) {
	path := seedDatabase(t,
		nostr.Event{ID: "old", PubKey: "pk1", CreatedAt: 100, Kind: 1, Content: "first"},
		nostr.Event{ID: "new", PubKey: "pk2", CreatedAt: 200, Kind: 7, Content: strings.Repeat("x", 60)},
	)

	out, err := runEventsCommand(t, "text", "--db", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.True(t, strings.HasPrefix(lines[1], "new"), lines[1])
	assert.Contains(t, lines[1], strings.Repeat("x", 40)+`..."`)
	assert.True(t, strings.HasPrefix(lines[2], "old"), lines[2])
	assert.Contains(t, lines[2], `"first"`)
}

func TestEventsJSONWithLimit(t *testing.T) {
	path := seedDatabase(t,
		nostr.Event{ID: "a", PubKey: "pk1", CreatedAt: 100, Kind: 1},
		nostr.Event{ID: "b", PubKey: "pk1", CreatedAt: 300, Kind: 1},
		nostr.Event{ID: "c", PubKey: "pk1", CreatedAt: 200, Kind: 1},
	)

	out, err := runEventsCommand(t, "json", "--db", path, "--limit", "2")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   EventsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Count)
	require.Len(t, resp.Data.Events, 2)
	assert.Equal(t, "b", resp.Data.Events[0].ID)
	assert.Equal(t, "c", resp.Data.Events[1].ID)
}

func TestEventsJSONEmptyIsArray(t *testing.T) {
	out, err := runEventsCommand(t, "json", "--db", seedDatabase(t))
	require.NoError(t, err)
	assert.Contains(t, out, `"events":[]`)
}

func TestEventsTextWithLimitShowsTotal(t *testing.T) {
	path := seedDatabase(t,
		nostr.Event{ID: "a", PubKey: "pk1", CreatedAt: 100, Kind: 1},
		nostr.Event{ID: "b", PubKey: "pk1", CreatedAt: 200, Kind: 1},
		nostr.Event{ID: "c", PubKey: "pk1", CreatedAt: 300, Kind: 1},
	)

	out, err := runEventsCommand(t, "text", "--db", path, "--limit", "1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "c"), lines[1])
	assert.Equal(t, "Showing 1 of 3 events.", lines[2])
}

func TestEventsByID(t *testing.T) {
	path := seedDatabase(t,
		nostr.Event{ID: "a", PubKey: "pk1", CreatedAt: 100, Kind: 1, Content: "wanted"},
		nostr.Event{ID: "b", PubKey: "pk1", CreatedAt: 200, Kind: 1},
	)

	out, err := runEventsCommand(t, "json", "--db", path, "--id", "a")
	require.NoError(t, err)

	var resp struct {
		Data EventsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.Count)
	assert.Equal(t, 2, resp.Data.Total)
	require.Len(t, resp.Data.Events, 1)
	assert.Equal(t, "wanted", resp.Data.Events[0].Content)
}

func TestEventsByIDNotFound(t *testing.T) {
	_, err := runEventsCommand(t, "text", "--db", seedDatabase(t), "--id", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event not found: missing")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestEventsByIDNotFoundJSON(t *testing.T) {
	out, err := runEventsCommand(t, "json", "--db", seedDatabase(t), "--id", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeEventNotFound, resp.Error.Code)
	assert.Equal(t, map[string]any{"id": "missing"}, resp.Error.Details)
}

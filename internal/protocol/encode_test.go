package protocol

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dolu89/ghost-relay/internal/nostr"
)

func TestEncode_Golden(t *testing.T) {
	ev := nostr.Event{
		ID:        "e1",
		PubKey:    "pk1",
		CreatedAt: 100,
		Kind:      1,
		Content:   "hello",
		Sig:       "s1g",
	}
	tagged := ev
	tagged.ID = "e2"
	tagged.Tags = nostr.Tags{{"p", "pk2"}}

	frames := []func() ([]byte, error){
		func() ([]byte, error) { return EncodeEvent("s1", ev) },
		func() ([]byte, error) { return EncodeEvent("s1", tagged) },
		func() ([]byte, error) { return EncodeEOSE("s1") },
		func() ([]byte, error) { return EncodeOK("e1", true, "") },
		func() ([]byte, error) { return EncodeOK("e1", false, "duplicate: event already exists") },
		func() ([]byte, error) { return EncodeNotice(LevelError, "unparseable message") },
		func() ([]byte, error) { return EncodeNotice(LevelInfo, "hi") },
	}

	var buf bytes.Buffer
	for _, encode := range frames {
		frame, err := encode()
		require.NoError(t, err)
		buf.Write(frame)
		buf.WriteByte('\n')
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "frames", buf.Bytes())
}

func TestEncode_EventDecodesBack(t *testing.T) {
	ev := nostr.Event{ID: "e1", PubKey: "pk1", CreatedAt: 5, Kind: 7, Tags: nostr.Tags{{"e", "x", "wss://r"}}}
	frame, err := EncodeEvent("sub", ev)
	require.NoError(t, err)

	var parts []any
	require.NoError(t, json.Unmarshal(frame, &parts))
	require.Len(t, parts, 3)
	assert.Equal(t, "EVENT", parts[0])
	assert.Equal(t, "sub", parts[1])

	env, err := Decode(append([]byte(`["EVENT",`), append(mustPayload(t, ev), ']')...))
	require.NoError(t, err)
	assert.Equal(t, ev, env.(*EventEnvelope).Event)
}

func mustPayload(t *testing.T, ev nostr.Event) []byte {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return data
}

package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dolu89/ghost-relay/internal/nostr"
)

func TestRegistry_OpenAndGet(t *testing.T) {
	r := NewRegistry()
	filters := nostr.Filters{{Authors: []string{"pk1"}}}

	require.NoError(t, r.Open("s1", filters))

	sub, ok := r.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "s1", sub.ID)
	assert.Equal(t, filters, sub.Filters)
	assert.Equal(t, 1, r.Len())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_Capacity(t *testing.T) {
	r := NewRegistry()
	for i := 1; i <= MaxSubscriptions; i++ {
		require.NoError(t, r.Open(fmt.Sprintf("s%d", i), nil))
	}

	err := r.Open("s6", nil)
	require.Error(t, err)
	assert.True(t, IsTooManySubscriptions(err))
	assert.Equal(t, []string{"s1", "s2", "s3", "s4", "s5"}, r.IDs())
}

func TestRegistry_CapacityCheckedBeforeDuplicate(t *testing.T) {
	r := NewRegistry()
	for i := 1; i <= MaxSubscriptions; i++ {
		require.NoError(t, r.Open(fmt.Sprintf("s%d", i), nil))
	}

	err := r.Open("s1", nil)
	assert.True(t, IsTooManySubscriptions(err))
	assert.False(t, IsDuplicateSubscription(err))
}

func TestRegistry_DuplicateKeepsOriginal(t *testing.T) {
	r := NewRegistry()
	original := nostr.Filters{{Kinds: []int{1}}}
	require.NoError(t, r.Open("s1", original))

	err := r.Open("s1", nostr.Filters{{Kinds: []int{7}}})
	require.Error(t, err)
	assert.True(t, IsDuplicateSubscription(err))

	sub, _ := r.Get("s1")
	assert.Equal(t, original, sub.Filters)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Close(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Open("s1", nil))
	require.NoError(t, r.Open("s2", nil))
	require.NoError(t, r.Open("s3", nil))

	assert.True(t, r.Close("s2"))
	assert.False(t, r.Close("s2"))
	assert.False(t, r.Close("never"))
	assert.Equal(t, []string{"s1", "s3"}, r.IDs())

	require.NoError(t, r.Open("s2", nil), "closed id can be reused")
	assert.Equal(t, []string{"s1", "s3", "s2"}, r.IDs())
}

func TestRegistry_ForEachStops(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Open(id, nil))
	}

	var visited []string
	r.ForEach(func(sub Subscription) bool {
		visited = append(visited, sub.ID)
		return sub.ID != "b"
	})
	assert.Equal(t, []string{"a", "b"}, visited)
}

func TestRegistry_MatchFirstInInsertionOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Open("kinds", nostr.Filters{{Kinds: []int{7}}}))
	require.NoError(t, r.Open("author", nostr.Filters{{Authors: []string{"pk1"}}}))
	require.NoError(t, r.Open("all", nostr.Filters{{}}))
	require.NoError(t, r.Open("empty", nil))

	sub, ok := r.Match(nostr.Event{ID: "e", PubKey: "pk1", Kind: 1})
	require.True(t, ok)
	assert.Equal(t, "author", sub.ID)

	sub, ok = r.Match(nostr.Event{ID: "e", PubKey: "pk2", Kind: 1})
	require.True(t, ok)
	assert.Equal(t, "all", sub.ID)

	r.Close("all")
	_, ok = r.Match(nostr.Event{ID: "e", PubKey: "pk2", Kind: 1})
	assert.False(t, ok, "a subscription without filters never matches")
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Open("s1", nil))
	r.Clear()
	assert.Zero(t, r.Len())
	assert.Empty(t, r.IDs())
}

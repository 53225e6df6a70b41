package nostr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64p(v int64) *int64 { return &v }

func TestFilterUnmarshal_Fields(t *testing.T) {
	raw := `{"ids":["a"],"authors":["pk1","pk2"],"kinds":[1,7],"#e":["x"],"#p":["y"],"since":10,"until":20,"limit":3,"search":"ignored","#long":["z"]}`

	var f Filter
	require.NoError(t, json.Unmarshal([]byte(raw), &f))

	assert.Equal(t, []string{"a"}, f.IDs)
	assert.Equal(t, []string{"pk1", "pk2"}, f.Authors)
	assert.Equal(t, []int{1, 7}, f.Kinds)
	assert.Equal(t, map[string][]string{"e": {"x"}, "p": {"y"}}, f.Tags)
	require.NotNil(t, f.Since)
	require.NotNil(t, f.Until)
	assert.Equal(t, int64(10), *f.Since)
	assert.Equal(t, int64(20), *f.Until)
	assert.Equal(t, 3, f.Limit)
}

func TestFilterUnmarshal_Empty(t *testing.T) {
	var f Filter
	require.NoError(t, json.Unmarshal([]byte(`{}`), &f))
	assert.Nil(t, f.IDs)
	assert.Nil(t, f.Tags)
	assert.Zero(t, f.Limit)
}

func TestFilterUnmarshal_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"array", `[1,2]`},
		{"string", `"abc"`},
		{"null", `null`},
		{"number", `5`},
		{"wrong kinds type", `{"kinds":["one"]}`},
		{"wrong authors type", `{"authors":"pk1"}`},
		{"wrong tag type", `{"#e":[1]}`},
		{"wrong limit type", `{"limit":"ten"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Filter
			assert.Error(t, json.Unmarshal([]byte(tt.raw), &f))
		})
	}
}

func TestFilterUnmarshal_NullFieldsAreAbsent(t *testing.T) {
	var f Filter
	raw := `{"ids":null,"authors":null,"kinds":null,"since":null,"until":null,"limit":null,"#e":null}`
	require.NoError(t, json.Unmarshal([]byte(raw), &f))

	assert.Nil(t, f.IDs)
	assert.Nil(t, f.Authors)
	assert.Nil(t, f.Kinds)
	assert.Nil(t, f.Since)
	assert.Nil(t, f.Until)
	assert.Zero(t, f.Limit)
	assert.Empty(t, f.Tags)
}

func TestFilterUnmarshal_FieldError(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"until":"x"}`, `field "until" must be an integer`},
		{`{"since":[1]}`, `field "since" must be an integer`},
		{`{"kinds":"x"}`, `field "kinds" must be an array of integers`},
		{`{"ids":[1]}`, `field "ids" must be an array of strings`},
		{`{"#p":{}}`, `field "#p" must be an array of strings`},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var f Filter
			err := f.UnmarshalJSON([]byte(tt.raw))
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.want, fe.Error())
		})
	}
}

func TestFilterUnmarshal_NotObject(t *testing.T) {
	var f Filter
	assert.ErrorIs(t, f.UnmarshalJSON([]byte(`[]`)), ErrFilterNotObject)
}

func TestFilterMarshal_TagKeys(t *testing.T) {
	f := Filter{Authors: []string{"pk1"}, Tags: map[string][]string{"p": {"x"}}, Limit: 2}

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Equal(t, `{"#p":["x"],"authors":["pk1"],"limit":2}`, string(data))
}

func TestFilterMatches(t *testing.T) {
	ev := Event{
		ID:        "id1",
		PubKey:    "pk1",
		CreatedAt: 100,
		Kind:      1,
		Tags:      Tags{{"e", "ev9"}, {"p", "pk7", "wss://relay"}, {"t"}},
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty matches all", Filter{}, true},
		{"id hit", Filter{IDs: []string{"x", "id1"}}, true},
		{"id miss", Filter{IDs: []string{"id2"}}, false},
		{"id prefix is not membership", Filter{IDs: []string{"id"}}, false},
		{"empty id list matches nothing", Filter{IDs: []string{}}, false},
		{"author hit", Filter{Authors: []string{"pk1"}}, true},
		{"author miss", Filter{Authors: []string{"pk2"}}, false},
		{"kind hit", Filter{Kinds: []int{0, 1}}, true},
		{"kind miss", Filter{Kinds: []int{7}}, false},
		{"since inclusive", Filter{Since: int64p(100)}, true},
		{"since after", Filter{Since: int64p(101)}, false},
		{"until exclusive", Filter{Until: int64p(100)}, false},
		{"until after", Filter{Until: int64p(101)}, true},
		{"tag hit", Filter{Tags: map[string][]string{"e": {"ev9"}}}, true},
		{"tag first value only", Filter{Tags: map[string][]string{"p": {"wss://relay"}}}, false},
		{"tag miss", Filter{Tags: map[string][]string{"e": {"ev8"}}}, false},
		{"tag without value never matches", Filter{Tags: map[string][]string{"t": {""}}}, false},
		{"all tag letters required", Filter{Tags: map[string][]string{"e": {"ev9"}, "p": {"nope"}}}, false},
		{"combined", Filter{Authors: []string{"pk1"}, Kinds: []int{1}, Since: int64p(50), Until: int64p(150)}, true},
		{"limit ignored by matching", Filter{Limit: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(ev))
		})
	}
}

func TestFiltersMatch(t *testing.T) {
	ev := Event{ID: "id1", PubKey: "pk1", Kind: 1}

	assert.False(t, Filters{}.Match(ev))
	assert.False(t, Filters{{Kinds: []int{2}}}.Match(ev))
	assert.True(t, Filters{{Kinds: []int{2}}, {Authors: []string{"pk1"}}}.Match(ev))
}

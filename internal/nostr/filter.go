package nostr

import (
	"bytes"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Filter selects events. Every present field must be satisfied for an event
// to match; absent fields place no constraint.
type Filter struct {
	IDs     []string
	Authors []string
	Kinds   []int
	// Tags maps a single tag letter (without the leading '#') to the
	// accepted values of that tag's first value.
	Tags  map[string][]string
	Since *int64
	Until *int64
	// Limit bounds replay results only. Zero means unlimited.
	Limit int
}

// Filters is the filter list of one subscription.
type Filters []Filter

// ErrFilterNotObject is returned when a filter is not a JSON object.
var ErrFilterNotObject = errors.New("filter must be a JSON object")

// FieldError reports a filter field whose value has the wrong type.
type FieldError struct {
	Field string
	Want  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q must be %s", e.Field, e.Want)
}

const (
	wantStrings  = "an array of strings"
	wantIntegers = "an array of integers"
	wantInteger  = "an integer"
)

// UnmarshalJSON decodes a filter object. Keys of the form "#x" with a single
// ASCII letter become tag filters; unknown keys and null values are ignored.
// Failures are ErrFilterNotObject or a *FieldError.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return ErrFilterNotObject
	}

	var out Filter
	for key, value := range raw {
		if isNull(value) {
			continue
		}
		var err error
		want := wantStrings
		switch key {
		case "ids":
			err = json.Unmarshal(value, &out.IDs)
		case "authors":
			err = json.Unmarshal(value, &out.Authors)
		case "kinds":
			want = wantIntegers
			err = json.Unmarshal(value, &out.Kinds)
		case "since":
			want = wantInteger
			out.Since = new(int64)
			err = json.Unmarshal(value, out.Since)
		case "until":
			want = wantInteger
			out.Until = new(int64)
			err = json.Unmarshal(value, out.Until)
		case "limit":
			want = wantInteger
			err = json.Unmarshal(value, &out.Limit)
		default:
			letter, ok := tagLetter(key)
			if !ok {
				continue
			}
			var values []string
			if err = json.Unmarshal(value, &values); err == nil {
				if out.Tags == nil {
					out.Tags = make(map[string][]string)
				}
				out.Tags[letter] = values
			}
		}
		if err != nil {
			return &FieldError{Field: key, Want: want}
		}
	}

	*f = out
	return nil
}

// MarshalJSON encodes the filter with tag filters written as "#x" keys.
func (f Filter) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any)
	if f.IDs != nil {
		obj["ids"] = f.IDs
	}
	if f.Authors != nil {
		obj["authors"] = f.Authors
	}
	if f.Kinds != nil {
		obj["kinds"] = f.Kinds
	}
	for letter, values := range f.Tags {
		obj["#"+letter] = values
	}
	if f.Since != nil {
		obj["since"] = *f.Since
	}
	if f.Until != nil {
		obj["until"] = *f.Until
	}
	if f.Limit > 0 {
		obj["limit"] = f.Limit
	}
	return json.Marshal(obj)
}

func isNull(value jsoniter.RawMessage) bool {
	return string(bytes.TrimSpace(value)) == "null"
}

func tagLetter(key string) (string, bool) {
	if len(key) != 2 || key[0] != '#' {
		return "", false
	}
	c := key[1]
	if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
		return "", false
	}
	return key[1:], true
}

// Matches reports whether ev satisfies every present field of f.
// Since is inclusive, Until is exclusive.
func (f Filter) Matches(ev Event) bool {
	if f.IDs != nil && !containsString(f.IDs, ev.ID) {
		return false
	}
	if f.Authors != nil && !containsString(f.Authors, ev.PubKey) {
		return false
	}
	if f.Kinds != nil && !containsInt(f.Kinds, ev.Kind) {
		return false
	}
	if f.Since != nil && ev.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && ev.CreatedAt >= *f.Until {
		return false
	}
	for letter, values := range f.Tags {
		if !hasTagValue(ev.Tags, letter, values) {
			return false
		}
	}
	return true
}

// Match reports whether ev matches at least one filter. An empty list
// matches nothing.
func (fs Filters) Match(ev Event) bool {
	for _, f := range fs {
		if f.Matches(ev) {
			return true
		}
	}
	return false
}

func hasTagValue(tags Tags, letter string, values []string) bool {
	for _, tag := range tags {
		if len(tag) >= 2 && tag[0] == letter && containsString(values, tag[1]) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsInt(list []int, n int) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}

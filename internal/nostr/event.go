package nostr

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Tags is the ordered tag list of an event. Each tag is an ordered sequence of
// strings whose first element names the tag.
type Tags [][]string

// Event is a signed nostr event. Events are immutable once built: the relay
// never rewrites one, it only stores, delivers and deletes it.
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// MarshalJSON encodes the event with nil tags written as an empty array.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	p := plain(e)
	if p.Tags == nil {
		p.Tags = Tags{}
	}
	return json.Marshal(p)
}

// Serialize returns the NIP-01 commitment the event id is computed over:
//
//	[0,<pubkey>,<created_at>,<kind>,<tags>,<content>]
//
// Strings use minimal escaping so the bytes match what clients hash.
func (e Event) Serialize() []byte {
	buf := make([]byte, 0, 128+len(e.Content))
	buf = append(buf, `[0,`...)
	buf = appendString(buf, e.PubKey)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, e.CreatedAt, 10)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(e.Kind), 10)
	buf = append(buf, ',', '[')
	for i, tag := range e.Tags {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '[')
		for j, v := range tag {
			if j > 0 {
				buf = append(buf, ',')
			}
			buf = appendString(buf, v)
		}
		buf = append(buf, ']')
	}
	buf = append(buf, ']', ',')
	buf = appendString(buf, e.Content)
	buf = append(buf, ']')
	return buf
}

// ComputeID returns the content hash the event's id must equal.
func (e Event) ComputeID() string {
	sum := sha256.Sum256(e.Serialize())
	return hex.EncodeToString(sum[:])
}

const hexDigits = "0123456789abcdef"

// appendString writes s as a JSON string literal. Only the quote, the
// backslash and control characters are escaped; HTML characters, U+2028,
// U+2029 and all other non-ASCII text are written verbatim.
func appendString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			buf = append(buf, '\\', '"')
		case '\\':
			buf = append(buf, '\\', '\\')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		case '\b':
			buf = append(buf, '\\', 'b')
		case '\f':
			buf = append(buf, '\\', 'f')
		default:
			if c < 0x20 {
				buf = append(buf, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
				continue
			}
			buf = append(buf, c)
		}
	}
	return append(buf, '"')
}

package testutil

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/Dolu89/ghost-relay/internal/nostr"
)

// Fixed secrets. Their public keys are stable across runs, which keeps
// signed fixtures and golden transcripts deterministic.
const (
	AliceSecret = "0000000000000000000000000000000000000000000000000000000000000001"
	BobSecret   = "1111111111111111111111111111111111111111111111111111111111111111"
	CarolSecret = "2222222222222222222222222222222222222222222222222222222222222222"
)

// Key is a secret key with its x-only public key in hex.
type Key struct {
	Secret *btcec.PrivateKey
	PubKey string
}

// MustKey parses a hex secret key, failing the test on error.
func MustKey(t testing.TB, secret string) Key {
	t.Helper()
	sk, err := nostr.ParseSecretKey(secret)
	require.NoError(t, err, "parse secret key")
	return Key{Secret: sk, PubKey: nostr.PublicKeyHex(sk)}
}

package nostr

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// ValidationError reports why an event was rejected. Reason is written to
// clients verbatim after the "invalid: " prefix.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid: " + e.Reason
}

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Verify checks that ev is well formed, that its id is the hash of its
// content and that its signature is valid for its public key.
// Returns nil if and only if the event is acceptable.
func Verify(ev Event) error {
	if !isHex(ev.ID, 32) {
		return invalid("id must be 64 lowercase hex characters")
	}
	if !isHex(ev.PubKey, 32) {
		return invalid("pubkey must be 64 lowercase hex characters")
	}
	if !isHex(ev.Sig, 64) {
		return invalid("sig must be 128 lowercase hex characters")
	}
	if ev.ComputeID() != ev.ID {
		return invalid("event id does not match content")
	}

	pkBytes, _ := hex.DecodeString(ev.PubKey)
	pk, err := schnorr.ParsePubKey(pkBytes)
	if err != nil {
		return invalid("malformed pubkey: %v", err)
	}
	sigBytes, _ := hex.DecodeString(ev.Sig)
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return invalid("malformed signature: %v", err)
	}
	idBytes, _ := hex.DecodeString(ev.ID)
	if !sig.Verify(idBytes, pk) {
		return invalid("bad signature")
	}
	return nil
}

// ParseSecretKey decodes a 32-byte hex secret key.
func ParseSecretKey(s string) (*btcec.PrivateKey, error) {
	if !isHex(s, 32) {
		return nil, fmt.Errorf("parse secret key: want 64 lowercase hex characters")
	}
	b, _ := hex.DecodeString(s)
	sk, _ := btcec.PrivKeyFromBytes(b)
	if sk.Key.IsZero() {
		return nil, fmt.Errorf("parse secret key: zero key")
	}
	return sk, nil
}

// PublicKeyHex returns the x-only public key of sk as hex.
func PublicKeyHex(sk *btcec.PrivateKey) string {
	return hex.EncodeToString(schnorr.SerializePubKey(sk.PubKey()))
}

// Sign fills in PubKey, ID and Sig for ev using sk.
func Sign(ev *Event, sk *btcec.PrivateKey) error {
	ev.PubKey = PublicKeyHex(sk)
	ev.ID = ev.ComputeID()
	idBytes, _ := hex.DecodeString(ev.ID)
	sig, err := schnorr.Sign(sk, idBytes)
	if err != nil {
		return fmt.Errorf("sign event: %w", err)
	}
	ev.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}

// isHex reports whether s is exactly n bytes of lowercase hex.
func isHex(s string, n int) bool {
	if len(s) != 2*n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

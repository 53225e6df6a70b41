// Package nostr provides the event and filter types relayed by ghost-relay.
//
// This package sits at the bottom of the import graph: every other internal
// package imports nostr, nostr imports nothing internal.
//
// Key constraints:
//   - Event ids are the lowercase hex sha256 of the NIP-01 commitment
//     [0, pubkey, created_at, kind, tags, content], serialized byte-exact
//   - Signatures are BIP-340 schnorr over secp256k1 with x-only public keys
//   - Filter matching is a pure function of (filter, event)
package nostr

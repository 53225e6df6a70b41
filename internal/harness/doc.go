// Package harness replays scripted client conversations against an
// in-process relay and records what each client receives.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: replay_limit
//	description: "A limited REQ replays the newest event first"
//	events:
//	  a: { key: alice, created_at: 100, content: "a" }
//	  b: { key: alice, created_at: 200, content: "b" }
//	seed: [a, b]
//	steps:
//	  - session: x
//	    send: ["REQ", "s1", { limit: 1 }]
//	assertions:
//	  - type: stored
//	    events: [a]
//
// Keys alice, bob and carol are predefined. Inside send, "@b" expands to
// the signed event b, "@b.id" to its id and "@alice.pubkey" to a public key.
// A session connects on the first step that names it, which also fixes its
// position in delivery order.
//
// # Transcripts
//
// Every connection, sent frame and received frame becomes one transcript
// line. Known event ids are replaced by their aliases so transcripts stay
// readable and stable:
//
//	x -> ["REQ","s1",{"limit":1}]
//	x <- ["EVENT","s1","@b"]
//	x <- ["EOSE","s1"]
//
// RunWithGolden compares transcripts with testdata/golden/<name>.golden.
package harness

// Package protocol encodes and decodes the relay's wire frames.
//
// Every frame is a JSON array whose first element is a command label.
// Clients send REQ, EVENT and CLOSE; the relay answers with EVENT, EOSE,
// OK and NOTICE. The codec is pure: it never touches the store or a session.
package protocol

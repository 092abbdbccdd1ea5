// Package signaling contains the WebSocket surface of the call relay: the
// connection lifecycle (connect, identify, disconnect), the presence fan-out,
// and the stateless lookup-then-forward routing of call, ICE, message and
// typing frames between identified users.
//
// Delivery is at-most-once and best-effort. An unreachable target is a
// silent drop, never an error surfaced to the sender.
package signaling

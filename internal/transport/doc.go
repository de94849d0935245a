// Package transport runs a duplex, cancellable message transport over a
// byte stream: versioned handshake, independent read and write pumps,
// per-operation timeouts, keepalive, and ordered close semantics.
//
// Ownership boundary:
// - connection lifecycle state machine (Idle through Closed)
// - handshake preamble + ClientHello/ServerHello exchange
// - packet framing over the stream via the wire package
// - ordered event delivery to the owner
package transport

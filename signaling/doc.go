// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package signaling relays transport negotiation payloads between
// peers over WebSocket.
//
// Peers connect to a [Relay] at
//
//	ws://host:port/?peer=<id>
//
// and exchange JSON text frames, one [Envelope] per frame. The relay
// stamps From with the sending socket's id, so a peer cannot speak for
// another, and forwards the envelope to the socket registered as To.
// Envelopes for unknown peers are logged and dropped. A second socket
// connecting with an id already in use replaces the first, which is
// closed.
//
// [Client] is the peer side. It satisfies session.Signaler, so a
// Session can hand its signal events straight to the relay.
package signaling

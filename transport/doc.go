// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport provides the peer-to-peer connection capability
// consumed by the peer manager.
//
// The package defines two narrow interfaces: a [Factory] creates one
// [Connection] per remote peer, and a Connection accepts negotiation
// payloads ([Connection.Signal]), sends bytes once established
// ([Connection.Send]), and tears down ([Connection.Destroy]). Everything
// the connection has to report flows back through the [Handlers]
// supplied at creation: outbound negotiation payloads, establishment,
// closure, errors, and inbound data.
//
// Handlers for one connection run serially, in the order the connection
// produced them, on a goroutine owned by the connection. They never run
// on the goroutine that called NewConnection, Signal, Send, or Destroy,
// so a consumer may take its own locks inside a handler and may safely
// finish registering the connection before the first handler runs.
// After OnClose no further handler runs.
//
// The production implementation, [WebRTCFactory], uses pion/webrtc with
// a single ordered data channel per PeerConnection and trickle ICE: the
// initiator emits an offer, the responder an answer, and both sides emit
// one candidate [Signal] per gathered ICE candidate. Candidates that
// arrive before the remote description are buffered. Signals are
// transport-neutral values the host relays over its own signaling
// channel (see the signaling package).
//
// [MemoryNetwork] is an in-process Factory for tests. Connections
// created from the same MemoryNetwork negotiate through the same
// offer → answer → connected flow without touching the network.
//
// [ICEServer] holds STUN/TURN configuration. When a caller supplies no
// servers, [DefaultICEServers] provides one public STUN server.
package transport

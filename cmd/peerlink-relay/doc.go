// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Peerlink-relay is the WebSocket signaling relay peerlink endpoints
// use to exchange WebRTC offers, answers, and ICE candidates. It only
// routes negotiation payloads; message traffic flows directly between
// peers over their data channels once connected.
package main

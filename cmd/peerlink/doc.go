// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Peerlink is a terminal chat client for end-to-end encrypted
// peer-to-peer messaging over WebRTC data channels.
//
// Each instance generates a fresh key pair, registers with a
// peerlink-relay under its peer id, and either dials a peer (--peer)
// or waits for offers. Public keys are exchanged automatically once a
// data channel opens; with encryption enabled, every text line is
// sealed for its recipient before it leaves the process.
//
// Lines read from stdin are sent to every connected peer, or to one
// peer with "@id message". "/peers" lists connected peers, "/connect
// id" dials another peer, "/quit" exits.
package main

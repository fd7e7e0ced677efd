// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package peer manages the lifecycle of concurrent peer connections and
// translates transport callbacks into named events.
//
// A [Manager] owns a registry of peer connections keyed by peer id.
// Each connection moves through two live states, [StateConnecting] and
// [StateConnected]; closing is terminal and removes the entry, so a
// closed connection is never observable in the registry, only as a
// [event.PeerDisconnected] event.
//
// Transport callbacks map to events as follows:
//
//	OnSignal   -> "signal"             (Event.Signal set; relay to the peer)
//	OnConnect  -> "peer-connected"     (state becomes Connected)
//	OnClose    -> "peer-disconnected"  (entry removed)
//	OnError    -> "connection-error"   (Event.Err wraps ErrTransport)
//	OnData     -> "message-received"   (Event.Message set), or
//	              "connection-error"   (Event.Err wraps ErrMessageParse)
//
// Events are delivered synchronously on the goroutine that observed the
// triggering callback or API call. Callbacks for one peer are delivered
// in transport order; there is no ordering across peers. The registry
// lock is held only for single reads and writes, never across a
// transport call or an event dispatch, so listeners may call back into
// the Manager.
//
// The Manager does not encrypt. [Options.Encryption] is carried for the
// host; the session package composes a Manager with a
// peercrypt.Manager to enforce it.
package peer

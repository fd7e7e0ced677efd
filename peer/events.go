// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"github.com/bureau-foundation/peerlink/lib/event"
	"github.com/bureau-foundation/peerlink/lib/message"
	"github.com/bureau-foundation/peerlink/transport"
)

// Event is the payload delivered to listeners. Which optional fields
// are set depends on Name:
//
//	signal              Signal
//	message-received    Message
//	message-sent        Message
//	connection-error    Err
//	encryption-error    Err (emitted by the session layer)
//	public-key-updated  PublicKey (emitted by the session layer)
type Event struct {
	Name      event.Name
	PeerID    string
	Message   *message.Message
	Signal    *transport.Signal
	PublicKey string
	Err       error
}

// Listener receives one Event.
type Listener = event.Listener[Event]

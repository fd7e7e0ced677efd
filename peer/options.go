// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"time"

	"github.com/bureau-foundation/peerlink/lib/clock"
	"github.com/bureau-foundation/peerlink/transport"
)

// Options configures a Manager.
type Options struct {
	// SignalingServer is the address of the signaling relay. The
	// Manager does not dial it; it is carried for the host.
	SignalingServer string

	// ICEServers is handed to every new transport connection. Empty
	// means transport.DefaultICEServers.
	ICEServers []transport.ICEServer

	Encryption EncryptionOptions

	// ConnectTimeout bounds how long a connection may stay in
	// StateConnecting. Zero (the default) waits indefinitely.
	ConnectTimeout time.Duration

	// Clock drives the connect timeout. Nil means clock.Real.
	Clock clock.Clock
}

// EncryptionOptions records whether the host requires encrypted
// content. Enforcement belongs to the session layer.
type EncryptionOptions struct {
	Enabled bool
}

func (o Options) withDefaults() Options {
	if len(o.ICEServers) == 0 {
		o.ICEServers = transport.DefaultICEServers()
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	return o
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import "errors"

var (
	// ErrDuplicateConnection is returned by Connect when the peer id is
	// already registered, in any state.
	ErrDuplicateConnection = errors.New("peer connection already exists")

	// ErrConnectionNotFound is returned when no connection is
	// registered for the peer id.
	ErrConnectionNotFound = errors.New("peer connection not found")

	// ErrNotConnected is returned by SendMessage while the connection
	// is still negotiating.
	ErrNotConnected = errors.New("peer not connected")

	// ErrSendFailure wraps a transport send error.
	ErrSendFailure = errors.New("send failed")

	// ErrTransport wraps failures reported asynchronously by the
	// transport. Delivered only through connection-error events.
	ErrTransport = errors.New("transport error")

	// ErrMessageParse marks inbound data that is not a valid message.
	// Delivered only through connection-error events.
	ErrMessageParse = errors.New("unparseable message")

	// ErrConnectTimeout is reported through a connection-error event
	// when Options.ConnectTimeout elapses before the peer connects.
	ErrConnectTimeout = errors.New("connect timed out")
)

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for peerlink
// components.
//
// The session layer stamps outbound messages with Clock.Now, and the
// peer manager arms its optional connect timeout with Clock.AfterFunc.
// Production code uses Real(); tests use Fake(), which only moves when
// Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	manager := peer.NewManager(factory, peer.Options{Clock: c, ConnectTimeout: 10 * time.Second}, logger)
//	// ... Connect ...
//	c.WaitForTimers(1)
//	c.Advance(10 * time.Second) // fires the timeout deterministically
package clock

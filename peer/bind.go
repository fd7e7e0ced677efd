// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/peerlink/lib/codec"
	"github.com/bureau-foundation/peerlink/lib/event"
	"github.com/bureau-foundation/peerlink/lib/message"
	"github.com/bureau-foundation/peerlink/transport"
)

// bind returns the transport handlers for one entry. Every handler
// first waits for the entry to be fully registered. Callbacks from a
// connection that has since been replaced or disconnected are dropped,
// except OnClose, which still completes the entry's own teardown.
func (m *Manager) bind(current *entry) transport.Handlers {
	peerID := current.peerID

	return transport.Handlers{
		OnSignal: func(signal transport.Signal) {
			<-current.ready
			if !m.registered(current) {
				return
			}
			m.emit(Event{Name: event.Signal, PeerID: peerID, Signal: &signal})
		},

		OnConnect: func() {
			<-current.ready
			m.mu.Lock()
			if m.connections[peerID] != current {
				m.mu.Unlock()
				return
			}
			current.state = StateConnected
			if current.timer != nil {
				current.timer.Stop()
			}
			m.mu.Unlock()

			m.logger.Info("peer connected", "peer", peerID)
			m.emit(Event{Name: event.PeerConnected, PeerID: peerID})
		},

		OnClose: func() {
			<-current.ready
			m.remove(current)
			m.mu.Lock()
			if current.timer != nil {
				current.timer.Stop()
			}
			m.mu.Unlock()
			m.closed(current)
		},

		OnError: func(err error) {
			<-current.ready
			if !m.registered(current) {
				return
			}
			m.logger.Warn("peer transport error", "peer", peerID, "error", err)
			m.emit(Event{
				Name:   event.ConnectionError,
				PeerID: peerID,
				Err:    fmt.Errorf("peer %q: %w: %w", peerID, ErrTransport, err),
			})
		},

		OnData: func(data []byte) {
			<-current.ready
			if !m.registered(current) {
				return
			}
			msg, err := message.Decode(data)
			if err != nil {
				m.logger.Warn("dropping unparseable message", "peer", peerID, "bytes", len(data), "error", err)
				if m.logger.Enabled(context.Background(), slog.LevelDebug) {
					if diagnostic, diagErr := codec.Diagnose(data); diagErr == nil {
						m.logger.Debug("unparseable message payload", "peer", peerID, "cbor", diagnostic)
					}
				}
				m.emit(Event{
					Name:   event.ConnectionError,
					PeerID: peerID,
					Err:    fmt.Errorf("peer %q sent %d bytes that are not a message: %w: %w", peerID, len(data), ErrMessageParse, err),
				})
				return
			}
			m.emit(Event{Name: event.MessageReceived, PeerID: peerID, Message: &msg})
		},
	}
}

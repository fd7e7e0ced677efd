// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/peerlink/lib/netutil"
	"github.com/bureau-foundation/peerlink/transport"
)

// writeTimeout bounds a single frame write to a peer socket.
const writeTimeout = 10 * time.Second

// maxFrameSize bounds one inbound envelope. An SDP offer with every
// candidate inlined stays well under it.
const maxFrameSize = 64 << 10

// Envelope is one signaling frame.
type Envelope struct {
	From   string           `json:"from"`
	To     string           `json:"to"`
	Signal transport.Signal `json:"signal"`
}

// socket is a WebSocket with serialized writes. gorilla/websocket
// allows one concurrent writer per connection.
type socket struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *socket) write(envelope Envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(envelope)
}

// Relay is an http.Handler that routes envelopes between connected
// peers.
type Relay struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[string]*socket
}

// NewRelay creates a Relay with no connected peers.
func NewRelay(logger *slog.Logger) *Relay {
	return &Relay{
		logger: logger,
		peers:  make(map[string]*socket),
	}
}

func (r *Relay) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	peerID := request.URL.Query().Get("peer")
	if peerID == "" {
		http.Error(writer, "missing peer query parameter", http.StatusBadRequest)
		return
	}

	conn, err := r.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", "peer", peerID, "remote", request.RemoteAddr, "error", err)
		return
	}

	conn.SetReadLimit(maxFrameSize)
	current := &socket{conn: conn}
	r.mu.Lock()
	previous := r.peers[peerID]
	r.peers[peerID] = current
	r.mu.Unlock()

	if previous != nil {
		r.logger.Info("peer reconnected, closing previous socket", "peer", peerID)
		previous.conn.Close()
	}
	r.logger.Info("peer joined", "peer", peerID, "remote", request.RemoteAddr)

	defer func() {
		r.mu.Lock()
		if r.peers[peerID] == current {
			delete(r.peers, peerID)
		}
		r.mu.Unlock()
		conn.Close()
		r.logger.Info("peer left", "peer", peerID)
	}()

	for {
		var envelope Envelope
		if err := conn.ReadJSON(&envelope); err != nil {
			if netutil.IsExpectedCloseError(err) {
				r.logger.Debug("peer socket read ended", "peer", peerID, "error", err)
			} else {
				r.logger.Warn("peer socket read failed", "peer", peerID, "error", err)
			}
			return
		}
		r.route(peerID, envelope)
	}
}

func (r *Relay) route(from string, envelope Envelope) {
	envelope.From = from
	if err := envelope.Signal.Validate(); err != nil {
		r.logger.Warn("dropping invalid signal", "from", from, "to", envelope.To, "error", err)
		return
	}

	r.mu.Lock()
	target := r.peers[envelope.To]
	r.mu.Unlock()
	if target == nil {
		r.logger.Warn("dropping signal for unknown peer", "from", from, "to", envelope.To, "type", envelope.Signal.Type)
		return
	}

	if err := target.write(envelope); err != nil {
		r.logger.Warn("forwarding signal failed", "from", from, "to", envelope.To, "error", err)
	}
}

// Peers returns the ids of connected peers in sorted order.
func (r *Relay) Peers() []string {
	r.mu.Lock()
	peers := make([]string, 0, len(r.peers))
	for peerID := range r.peers {
		peers = append(peers, peerID)
	}
	r.mu.Unlock()
	sort.Strings(peers)
	return peers
}

// Close closes every peer socket. In-flight ServeHTTP calls return.
func (r *Relay) Close() {
	r.mu.Lock()
	sockets := make([]*socket, 0, len(r.peers))
	for _, current := range r.peers {
		sockets = append(sockets, current)
	}
	r.mu.Unlock()

	for _, current := range sockets {
		current.conn.Close()
	}
}

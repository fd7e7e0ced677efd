// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/bureau-foundation/peerlink/transport"
)

// MemorySignaler relays signals between Sessions in one process. Each
// Session gets its own [MemorySignaler.Endpoint]; delivery calls the
// target Session's HandleRemoteSignal on the sender's goroutine.
type MemorySignaler struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemorySignaler creates an empty in-process signaling hub.
func NewMemorySignaler() *MemorySignaler {
	return &MemorySignaler{sessions: make(map[string]*Session)}
}

// Attach makes session reachable as id.
func (m *MemorySignaler) Attach(id string, session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = session
}

// Detach removes id. Later signals addressed to it fail.
func (m *MemorySignaler) Detach(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Endpoint returns the Signaler a Session with id from sends through.
func (m *MemorySignaler) Endpoint(from string) Signaler {
	return memoryEndpoint{hub: m, from: from}
}

type memoryEndpoint struct {
	hub  *MemorySignaler
	from string
}

func (e memoryEndpoint) SendSignal(ctx context.Context, to string, signal transport.Signal) error {
	e.hub.mu.RLock()
	target, ok := e.hub.sessions[to]
	e.hub.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no session attached as %q", to)
	}
	return target.HandleRemoteSignal(ctx, e.from, signal)
}

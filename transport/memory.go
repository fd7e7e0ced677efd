// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"sync"
)

// Compile-time interface checks.
var (
	_ Factory    = (*MemoryNetwork)(nil)
	_ Connection = (*memoryConnection)(nil)
)

// MemoryNetwork is an in-process Factory for tests. Two connections
// created from the same MemoryNetwork, one as initiator, pair up when
// the host relays their signals to each other exactly as it would for
// WebRTC: the initiator's offer (and a trickled candidate) go to the
// responder, the responder's answer goes back, and both sides then
// report OnConnect. Data sent on one side arrives as OnData on the
// other; destroying either side closes both.
//
// All connection state lives under the network's single lock.
type MemoryNetwork struct {
	mu      sync.Mutex
	offers  map[string]*memoryConnection // key: offer token
	counter uint64
}

// NewMemoryNetwork creates an empty in-process network.
func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{
		offers: make(map[string]*memoryConnection),
	}
}

type memoryConnection struct {
	network   *MemoryNetwork
	initiator bool
	token     string
	dispatch  *dispatcher
	remote    *memoryConnection
	connected bool
	closed    bool
}

// NewConnection creates one endpoint. An initiator immediately emits an
// offer followed by one candidate signal.
func (n *MemoryNetwork) NewConnection(config Config, handlers Handlers) (Connection, error) {
	connection := &memoryConnection{
		network:   n,
		initiator: config.Initiator,
		dispatch:  &dispatcher{handlers: handlers},
	}

	if config.Initiator {
		n.mu.Lock()
		n.counter++
		connection.token = fmt.Sprintf("memory-offer-%d", n.counter)
		n.offers[connection.token] = connection
		n.mu.Unlock()

		connection.dispatch.signal(Signal{Type: SignalOffer, SDP: connection.token})
		connection.dispatch.signal(Signal{
			Type:      SignalCandidate,
			Candidate: &Candidate{Candidate: "candidate:" + connection.token + " 1 memory 1 in-process 0 typ host"},
		})
	}
	return connection, nil
}

// PendingOffers returns the number of offers not yet answered.
func (n *MemoryNetwork) PendingOffers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.offers)
}

func (c *memoryConnection) Signal(signal Signal) error {
	if err := signal.Validate(); err != nil {
		return err
	}

	c.network.mu.Lock()
	defer c.network.mu.Unlock()

	if c.closed {
		return ErrDestroyed
	}

	switch signal.Type {
	case SignalCandidate:
		return nil

	case SignalOffer:
		if c.initiator || c.remote != nil {
			return fmt.Errorf("%w: unexpected offer", ErrInvalidSignal)
		}
		offerer, ok := c.network.offers[signal.SDP]
		if !ok || offerer.closed {
			return fmt.Errorf("%w: unknown offer %q", ErrInvalidSignal, signal.SDP)
		}
		delete(c.network.offers, signal.SDP)
		c.token = signal.SDP
		c.remote = offerer
		offerer.remote = c
		c.dispatch.signal(Signal{Type: SignalAnswer, SDP: c.token})
		return nil

	case SignalAnswer:
		if !c.initiator || c.remote == nil || signal.SDP != c.token {
			return fmt.Errorf("%w: answer does not match an outstanding offer", ErrInvalidSignal)
		}
		if c.connected {
			return nil
		}
		if c.remote.closed {
			return fmt.Errorf("%w: answering peer is gone", ErrInvalidSignal)
		}
		c.connected = true
		c.remote.connected = true
		c.dispatch.connect()
		c.remote.dispatch.connect()
		return nil
	}
	return nil
}

func (c *memoryConnection) Send(data []byte) error {
	c.network.mu.Lock()
	defer c.network.mu.Unlock()

	if !c.connected || c.remote == nil || c.remote.closed {
		return ErrNotOpen
	}
	c.remote.dispatch.data(append([]byte(nil), data...))
	return nil
}

func (c *memoryConnection) Connected() bool {
	c.network.mu.Lock()
	defer c.network.mu.Unlock()
	return c.connected
}

func (c *memoryConnection) Destroy() error {
	c.network.mu.Lock()
	defer c.network.mu.Unlock()

	c.closeLocked()
	if c.remote != nil {
		c.remote.closeLocked()
	}
	return nil
}

// closeLocked marks the endpoint closed and queues OnClose. Must be
// called with network.mu held.
func (c *memoryConnection) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	c.connected = false
	if c.initiator && c.token != "" {
		if pending, ok := c.network.offers[c.token]; ok && pending == c {
			delete(c.network.offers, c.token)
		}
	}
	c.dispatch.close()
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/bureau-foundation/peerlink/lib/clock"
	"github.com/bureau-foundation/peerlink/lib/event"
	"github.com/bureau-foundation/peerlink/lib/message"
	"github.com/bureau-foundation/peerlink/transport"
)

// State is the lifecycle state of a registered connection.
type State int

const (
	// StateConnecting is entered on Connect while the transport
	// negotiates.
	StateConnecting State = iota

	// StateConnected permits message delivery.
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// entry is one registered peer connection.
//
// connection is written once, before ready is closed; every reader
// waits on ready first. state and timer are guarded by Manager.mu.
type entry struct {
	peerID     string
	ready      chan struct{}
	connection transport.Connection

	state State
	timer *clock.Timer

	closeOnce sync.Once
}

// Manager owns the peer connection registry. Safe for concurrent use.
type Manager struct {
	factory transport.Factory
	options Options
	logger  *slog.Logger
	events  *event.Emitter[Event]

	mu          sync.Mutex
	connections map[string]*entry
}

// NewManager creates a Manager that builds connections with factory.
func NewManager(factory transport.Factory, options Options, logger *slog.Logger) *Manager {
	return &Manager{
		factory:     factory,
		options:     options.withDefaults(),
		logger:      logger,
		events:      event.NewEmitter[Event](logger),
		connections: make(map[string]*entry),
	}
}

// Options returns the effective configuration, defaults applied.
func (m *Manager) Options() Options {
	return m.options
}

// AddListener registers listener for name. Listeners run synchronously
// in registration order; a panicking listener is logged and skipped.
func (m *Manager) AddListener(name event.Name, listener Listener) {
	m.events.On(name, listener)
}

func (m *Manager) emit(ev Event) {
	m.events.Emit(ev.Name, ev)
}

// Connect registers peerID in StateConnecting and creates its transport
// connection. It returns once the connection object exists; the
// peer-connected event reports establishment. The entry is in the
// registry before any transport callback for it is delivered.
func (m *Manager) Connect(ctx context.Context, peerID string, initiator bool) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("connecting to peer %q: %w", peerID, err)
	}

	current := &entry{peerID: peerID, ready: make(chan struct{})}

	m.mu.Lock()
	if _, exists := m.connections[peerID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("connecting to peer %q: %w", peerID, ErrDuplicateConnection)
	}
	m.connections[peerID] = current
	m.mu.Unlock()

	connection, err := m.factory.NewConnection(transport.Config{
		Initiator:  initiator,
		ICEServers: m.options.ICEServers,
	}, m.bind(current))
	if err != nil {
		m.remove(current)
		// A transport that fails part way may still report a close;
		// the caller already has the error, so it must not also see
		// peer-disconnected.
		current.closeOnce.Do(func() {})
		close(current.ready)
		return fmt.Errorf("creating connection to peer %q: %w: %w", peerID, ErrTransport, err)
	}
	current.connection = connection
	close(current.ready)

	if m.options.ConnectTimeout > 0 {
		m.mu.Lock()
		if m.connections[peerID] == current && current.state == StateConnecting {
			current.timer = m.options.Clock.AfterFunc(m.options.ConnectTimeout, func() {
				m.connectTimedOut(current)
			})
		}
		m.mu.Unlock()
	}

	m.logger.Info("peer connection created", "peer", peerID, "initiator", initiator)
	return nil
}

// HandleSignal forwards a negotiation payload received from the remote
// peer to its transport connection.
func (m *Manager) HandleSignal(ctx context.Context, peerID string, signal transport.Signal) error {
	current, ok := m.lookup(peerID)
	if !ok {
		return fmt.Errorf("handling %s signal from peer %q: %w", signal.Type, peerID, ErrConnectionNotFound)
	}

	select {
	case <-current.ready:
	case <-ctx.Done():
		return fmt.Errorf("handling %s signal from peer %q: %w", signal.Type, peerID, ctx.Err())
	}
	if current.connection == nil {
		return fmt.Errorf("handling %s signal from peer %q: %w", signal.Type, peerID, ErrConnectionNotFound)
	}

	if err := current.connection.Signal(signal); err != nil {
		return fmt.Errorf("handling %s signal from peer %q: %w: %w", signal.Type, peerID, ErrTransport, err)
	}
	return nil
}

// SendMessage serializes msg and sends it to peerID. The connection
// must be in StateConnected.
func (m *Manager) SendMessage(ctx context.Context, peerID string, msg message.Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("sending to peer %q: %w", peerID, err)
	}

	m.mu.Lock()
	current, ok := m.connections[peerID]
	var state State
	if ok {
		state = current.state
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("sending to peer %q: %w", peerID, ErrConnectionNotFound)
	}
	if state != StateConnected {
		return fmt.Errorf("sending to peer %q (state %s): %w", peerID, state, ErrNotConnected)
	}

	if err := msg.Validate(); err != nil {
		return fmt.Errorf("sending to peer %q: %w", peerID, err)
	}
	data, err := message.Encode(msg)
	if err != nil {
		return fmt.Errorf("sending to peer %q: %w", peerID, err)
	}

	if err := current.connection.Send(data); err != nil {
		failure := fmt.Errorf("sending message %s to peer %q: %w: %w", msg.ID, peerID, ErrSendFailure, err)
		m.emit(Event{Name: event.ConnectionError, PeerID: peerID, Err: failure})
		return failure
	}

	m.emit(Event{Name: event.MessageSent, PeerID: peerID, Message: &msg})
	return nil
}

// Disconnect tears down peerID's connection and removes it from the
// registry before returning. Unknown peers are ignored. Transport
// teardown failures are logged, never returned.
func (m *Manager) Disconnect(peerID string) {
	m.mu.Lock()
	current, ok := m.connections[peerID]
	if ok {
		delete(m.connections, peerID)
	}
	m.mu.Unlock()

	if ok {
		m.teardown(current)
	}
}

// DisconnectAll disconnects every registered peer.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.connections))
	for _, current := range m.connections {
		entries = append(entries, current)
	}
	clear(m.connections)
	m.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].peerID < entries[j].peerID })
	for _, current := range entries {
		m.teardown(current)
	}
}

// IsConnected reports whether peerID is registered and connected.
func (m *Manager) IsConnected(peerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.connections[peerID]
	return ok && current.state == StateConnected
}

// State returns peerID's state, or false if it is not registered.
func (m *Manager) State(peerID string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.connections[peerID]
	if !ok {
		return 0, false
	}
	return current.state, true
}

// ConnectedPeers returns the ids of connected peers in sorted order.
func (m *Manager) ConnectedPeers() []string {
	m.mu.Lock()
	peers := make([]string, 0, len(m.connections))
	for peerID, current := range m.connections {
		if current.state == StateConnected {
			peers = append(peers, peerID)
		}
	}
	m.mu.Unlock()

	sort.Strings(peers)
	return peers
}

func (m *Manager) lookup(peerID string) (*entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.connections[peerID]
	return current, ok
}

// registered reports whether current is still the registered entry for
// its peer id.
func (m *Manager) registered(current *entry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connections[current.peerID] == current
}

// remove deletes current from the registry if it is still the
// registered entry, reporting whether it did.
func (m *Manager) remove(current *entry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connections[current.peerID] != current {
		return false
	}
	delete(m.connections, current.peerID)
	return true
}

// teardown destroys an entry already removed from the registry and
// emits peer-disconnected.
func (m *Manager) teardown(current *entry) {
	<-current.ready

	m.mu.Lock()
	if current.timer != nil {
		current.timer.Stop()
	}
	m.mu.Unlock()

	if current.connection != nil {
		m.destroy(current)
	}
	m.closed(current)
}

func (m *Manager) destroy(current *entry) {
	defer func() {
		if recovered := recover(); recovered != nil {
			m.logger.Error("transport destroy panicked", "peer", current.peerID, "panic", recovered)
		}
	}()
	if err := current.connection.Destroy(); err != nil {
		m.logger.Warn("transport destroy failed", "peer", current.peerID, "error", err)
	}
}

// closed emits peer-disconnected at most once per entry.
func (m *Manager) closed(current *entry) {
	current.closeOnce.Do(func() {
		m.logger.Info("peer disconnected", "peer", current.peerID)
		m.emit(Event{Name: event.PeerDisconnected, PeerID: current.peerID})
	})
}

// connectTimedOut removes current in the same critical section that
// finds it still connecting, so a racing OnConnect is dropped as stale.
func (m *Manager) connectTimedOut(current *entry) {
	m.mu.Lock()
	stuck := m.connections[current.peerID] == current && current.state == StateConnecting
	if stuck {
		delete(m.connections, current.peerID)
	}
	m.mu.Unlock()
	if !stuck {
		return
	}

	m.logger.Warn("peer connect timed out", "peer", current.peerID, "timeout", m.options.ConnectTimeout)
	m.emit(Event{
		Name:   event.ConnectionError,
		PeerID: current.peerID,
		Err:    fmt.Errorf("peer %q still connecting after %s: %w", current.peerID, m.options.ConnectTimeout, ErrConnectTimeout),
	})
	m.teardown(current)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/peerlink/lib/event"
	"github.com/bureau-foundation/peerlink/lib/testutil"
	"github.com/bureau-foundation/peerlink/transport"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// fakeFactory records every connection it creates. Tests drive the
// transport side by invoking the captured handlers directly.
type fakeFactory struct {
	mu          sync.Mutex
	err         error
	configs     []transport.Config
	connections []*fakeConnection

	// failed holds the handlers passed to calls that returned err.
	failed []transport.Handlers
}

func (f *fakeFactory) NewConnection(config transport.Config, handlers transport.Handlers) (transport.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		f.failed = append(f.failed, handlers)
		return nil, f.err
	}
	connection := &fakeConnection{handlers: handlers}
	f.configs = append(f.configs, config)
	f.connections = append(f.connections, connection)
	return connection, nil
}

func (f *fakeFactory) last(t *testing.T) *fakeConnection {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.connections) == 0 {
		t.Fatal("factory created no connections")
	}
	return f.connections[len(f.connections)-1]
}

type fakeConnection struct {
	handlers transport.Handlers

	mu           sync.Mutex
	signals      []transport.Signal
	sent         [][]byte
	sendErr      error
	destroyErr   error
	destroyPanic bool
	destroyed    int
	connected    bool
}

func (c *fakeConnection) Signal(signal transport.Signal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signals = append(c.signals, signal)
	return nil
}

func (c *fakeConnection) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeConnection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConnection) Destroy() error {
	c.mu.Lock()
	c.destroyed++
	shouldPanic := c.destroyPanic
	err := c.destroyErr
	c.mu.Unlock()
	if shouldPanic {
		panic("destroy exploded")
	}
	return err
}

func (c *fakeConnection) connect() {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	c.handlers.OnConnect()
}

func (c *fakeConnection) destroyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// recorder captures every event a Manager emits.
type recorder struct {
	events chan Event
}

func record(manager *Manager) *recorder {
	r := &recorder{events: make(chan Event, 128)}
	for _, name := range append([]event.Name{event.Signal}, event.Names...) {
		manager.AddListener(name, func(ev Event) { r.events <- ev })
	}
	return r
}

func (r *recorder) next(t *testing.T) Event {
	t.Helper()
	return testutil.RequireReceive(t, r.events, 5*time.Second, "waiting for event")
}

func (r *recorder) expect(t *testing.T, name event.Name, peerID string) Event {
	t.Helper()
	ev := r.next(t)
	if ev.Name != name || ev.PeerID != peerID {
		t.Fatalf("event = %s/%q, want %s/%q (err %v)", ev.Name, ev.PeerID, name, peerID, ev.Err)
	}
	return ev
}

func (r *recorder) expectNone(t *testing.T) {
	t.Helper()
	select {
	case ev := <-r.events:
		t.Fatalf("unexpected event %s/%q (err %v)", ev.Name, ev.PeerID, ev.Err)
	default:
	}
}

func requireErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package event provides the named-event observer registry used by the
// peer and session layers.
//
// An [Emitter] maps an event [Name] to an ordered list of listeners.
// [Emitter.Emit] delivers synchronously, on the caller's goroutine, to
// every listener registered for that name in registration order. A
// listener that panics is recovered and logged; delivery continues
// with the next listener.
package event

import (
	"log/slog"
	"sync"
)

// Name identifies an event. The values are stable strings shared with
// non-Go peerlink hosts.
type Name string

const (
	PeerConnected    Name = "peer-connected"
	PeerDisconnected Name = "peer-disconnected"
	MessageReceived  Name = "message-received"
	MessageSent      Name = "message-sent"
	ConnectionError  Name = "connection-error"
	EncryptionError  Name = "encryption-error"
	PublicKeyUpdated Name = "public-key-updated"

	// Signal carries a transport negotiation payload that the host must
	// relay to the remote peer over its signaling channel.
	Signal Name = "signal"
)

// Names lists every public event name (Signal excluded).
var Names = []Name{
	PeerConnected,
	PeerDisconnected,
	MessageReceived,
	MessageSent,
	ConnectionError,
	EncryptionError,
	PublicKeyUpdated,
}

// Listener receives one event payload.
type Listener[T any] func(T)

// Emitter is a synchronous observer registry. The zero value is not
// usable; create one with NewEmitter. Safe for concurrent use: the
// listener list is copied under the lock and dispatched outside it, so
// a listener may register further listeners or emit.
type Emitter[T any] struct {
	logger *slog.Logger

	mu        sync.RWMutex
	listeners map[Name][]Listener[T]
}

// NewEmitter returns an empty Emitter that logs recovered listener
// panics to logger.
func NewEmitter[T any](logger *slog.Logger) *Emitter[T] {
	return &Emitter[T]{
		logger:    logger,
		listeners: make(map[Name][]Listener[T]),
	}
}

// On appends listener to the list for name.
func (e *Emitter[T]) On(name Name, listener Listener[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[name] = append(e.listeners[name], listener)
}

// ListenerCount returns the number of listeners registered for name.
func (e *Emitter[T]) ListenerCount(name Name) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[name])
}

// Emit delivers payload to every listener for name, in registration
// order, before returning.
func (e *Emitter[T]) Emit(name Name, payload T) {
	e.mu.RLock()
	listeners := append([]Listener[T](nil), e.listeners[name]...)
	e.mu.RUnlock()

	for index, listener := range listeners {
		e.deliver(name, index, listener, payload)
	}
}

func (e *Emitter[T]) deliver(name Name, index int, listener Listener[T], payload T) {
	defer func() {
		if recovered := recover(); recovered != nil {
			e.logger.Error("event listener panicked",
				"event", string(name),
				"listener", index,
				"panic", recovered,
			)
		}
	}()
	listener(payload)
}

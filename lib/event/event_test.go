// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"io"
	"log/slog"
	"testing"
)

func newEmitter() *Emitter[string] {
	return NewEmitter[string](slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func TestEmitRegistrationOrder(t *testing.T) {
	emitter := newEmitter()
	var calls []string
	emitter.On(PeerConnected, func(payload string) { calls = append(calls, "first:"+payload) })
	emitter.On(PeerConnected, func(payload string) { calls = append(calls, "second:"+payload) })
	emitter.On(PeerDisconnected, func(payload string) { calls = append(calls, "other:"+payload) })

	emitter.Emit(PeerConnected, "bob")

	if len(calls) != 2 || calls[0] != "first:bob" || calls[1] != "second:bob" {
		t.Errorf("calls = %v, want [first:bob second:bob]", calls)
	}
}

func TestEmitNoListeners(t *testing.T) {
	emitter := newEmitter()
	emitter.Emit(MessageSent, "nobody listening")
	if count := emitter.ListenerCount(MessageSent); count != 0 {
		t.Errorf("ListenerCount = %d, want 0", count)
	}
}

func TestEmitIsolatesPanics(t *testing.T) {
	emitter := newEmitter()
	var delivered []int
	emitter.On(ConnectionError, func(string) { delivered = append(delivered, 1) })
	emitter.On(ConnectionError, func(string) { panic("listener failure") })
	emitter.On(ConnectionError, func(string) { delivered = append(delivered, 3) })

	emitter.Emit(ConnectionError, "boom")

	if len(delivered) != 2 || delivered[0] != 1 || delivered[1] != 3 {
		t.Errorf("delivered = %v, want [1 3]", delivered)
	}
}

func TestEmitReentrant(t *testing.T) {
	emitter := newEmitter()
	var calls []string
	emitter.On(MessageReceived, func(payload string) {
		calls = append(calls, payload)
		// Registering during dispatch must not deadlock or affect the
		// dispatch already in progress.
		emitter.On(MessageReceived, func(payload string) { calls = append(calls, "late:"+payload) })
		emitter.Emit(MessageSent, "nested")
	})
	emitter.On(MessageSent, func(payload string) { calls = append(calls, payload) })

	emitter.Emit(MessageReceived, "outer")
	if len(calls) != 2 || calls[0] != "outer" || calls[1] != "nested" {
		t.Errorf("calls = %v, want [outer nested]", calls)
	}
	if count := emitter.ListenerCount(MessageReceived); count != 2 {
		t.Errorf("ListenerCount = %d, want 2", count)
	}
}

func TestNamesAreStable(t *testing.T) {
	want := map[Name]string{
		PeerConnected:    "peer-connected",
		PeerDisconnected: "peer-disconnected",
		MessageReceived:  "message-received",
		MessageSent:      "message-sent",
		ConnectionError:  "connection-error",
		EncryptionError:  "encryption-error",
		PublicKeyUpdated: "public-key-updated",
	}
	if len(Names) != len(want) {
		t.Fatalf("len(Names) = %d, want %d", len(Names), len(want))
	}
	for _, name := range Names {
		if string(name) != want[name] {
			t.Errorf("event name %q, want %q", name, want[name])
		}
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/bureau-foundation/peerlink/lib/event"
	"github.com/bureau-foundation/peerlink/lib/message"
	"github.com/bureau-foundation/peerlink/lib/peercrypt"
	"github.com/bureau-foundation/peerlink/peer"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{"", command{kind: commandNone}},
		{"   ", command{kind: commandNone}},
		{"hello everyone", command{kind: commandBroadcast, text: "hello everyone"}},
		{"@bob hi there", command{kind: commandDirect, target: "bob", text: "hi there"}},
		{"@bob", command{kind: commandUnknown, text: "@bob"}},
		{"@ hi", command{kind: commandUnknown, text: "@ hi"}},
		{"/peers", command{kind: commandPeers}},
		{"/connect carol", command{kind: commandConnect, target: "carol"}},
		{"/connect", command{kind: commandUnknown, text: "/connect"}},
		{"/quit", command{kind: commandQuit}},
		{"/exit", command{kind: commandQuit}},
		{"/dance", command{kind: commandUnknown, text: "/dance"}},
	}

	for _, tt := range tests {
		if got := parseLine(tt.line); got != tt.want {
			t.Errorf("parseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestDescribeEvent(t *testing.T) {
	crypto, err := peercrypt.New()
	if err != nil {
		t.Fatalf("peercrypt.New error: %v", err)
	}
	msg := message.Message{ID: "m-1", Kind: message.KindText, Content: "hello"}

	tests := []struct {
		event peer.Event
		want  string
	}{
		{peer.Event{Name: event.PeerConnected, PeerID: "bob"}, "* connected to bob"},
		{peer.Event{Name: event.PeerDisconnected, PeerID: "bob"}, "* bob disconnected"},
		{peer.Event{Name: event.MessageReceived, PeerID: "bob", Message: &msg}, "[bob] hello"},
		{peer.Event{Name: event.PublicKeyUpdated, PeerID: "bob", PublicKey: crypto.PublicKey()}, "* bob key fingerprint " + peercrypt.Fingerprint(crypto.PublicKey())},
		{peer.Event{Name: event.ConnectionError, PeerID: "bob", Err: errors.New("ice failed")}, "! connection error with bob: ice failed"},
	}
	for _, tt := range tests {
		got, ok := describeEvent(tt.event)
		if !ok || got != tt.want {
			t.Errorf("describeEvent(%s) = %q, %v; want %q", tt.event.Name, got, ok, tt.want)
		}
	}

	if _, ok := describeEvent(peer.Event{Name: event.MessageSent, PeerID: "bob", Message: &msg}); ok {
		t.Error("message-sent should not be displayed")
	}
	if got, _ := describeEvent(peer.Event{Name: event.EncryptionError, PeerID: "bob", Err: peercrypt.ErrAuthenticationFailure}); !strings.Contains(got, "authentication failed") {
		t.Errorf("encryption-error line = %q", got)
	}
}

func TestPaletteDisabled(t *testing.T) {
	colors := newPalette(false)
	for _, line := range []string{"* connected to bob", "! sending to bob: closed", "[bob] hi", "plain"} {
		if got := colors.paint(line); got != line {
			t.Errorf("paint(%q) = %q, want unchanged", line, got)
		}
	}
}

func TestLineWriterSerializes(t *testing.T) {
	var buffer strings.Builder
	output := &lineWriter{writer: &buffer, colors: newPalette(false)}

	done := make(chan struct{})
	for range 4 {
		go func() {
			for range 25 {
				output.println("[bob] hello")
			}
			done <- struct{}{}
		}()
	}
	for range 4 {
		<-done
	}

	lines := strings.Split(strings.TrimSuffix(buffer.String(), "\n"), "\n")
	if len(lines) != 100 {
		t.Fatalf("got %d lines, want 100", len(lines))
	}
	for _, line := range lines {
		if line != "[bob] hello" {
			t.Fatalf("interleaved line %q", line)
		}
	}
}

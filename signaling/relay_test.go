// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/peerlink/lib/testutil"
	"github.com/bureau-foundation/peerlink/transport"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func startRelay(t *testing.T) (*Relay, string) {
	t.Helper()
	relay := NewRelay(testLogger())
	server := httptest.NewServer(relay)
	t.Cleanup(func() {
		relay.Close()
		server.Close()
	})
	return relay, "ws" + strings.TrimPrefix(server.URL, "http")
}

// waitForPeers blocks until the relay has registered exactly want.
func waitForPeers(t *testing.T, relay *Relay, want ...string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		got := relay.Peers()
		if slices.Equal(got, want) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("relay peers = %v, want %v", got, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// runClient dials peerID and starts its read loop, returning the
// envelopes it receives and a channel carrying Run's result.
func runClient(t *testing.T, url, peerID string) (*Client, <-chan Envelope, <-chan error) {
	t.Helper()
	client, err := Dial(context.Background(), url, peerID, testLogger())
	if err != nil {
		t.Fatalf("Dial(%q) error: %v", peerID, err)
	}
	t.Cleanup(func() { client.Close() })

	received := make(chan Envelope, 16)
	result := make(chan error, 1)
	go func() {
		result <- client.Run(context.Background(), func(envelope Envelope) { received <- envelope })
	}()
	return client, received, result
}

func TestRelayRoutesSignals(t *testing.T) {
	relay, url := startRelay(t)
	alice, _, _ := runClient(t, url, "alice")
	bob, bobInbox, _ := runClient(t, url, "bob")
	waitForPeers(t, relay, "alice", "bob")

	offer := transport.Signal{Type: transport.SignalOffer, SDP: "v=0 offer"}
	if err := alice.SendSignal(context.Background(), "bob", offer); err != nil {
		t.Fatalf("SendSignal error: %v", err)
	}
	envelope := testutil.RequireReceive(t, bobInbox, 5*time.Second, "bob waiting for offer")
	if envelope.From != "alice" || envelope.To != "bob" || envelope.Signal.SDP != "v=0 offer" {
		t.Errorf("bob received %+v", envelope)
	}
	if bob.PeerID() != "bob" {
		t.Errorf("PeerID = %q, want bob", bob.PeerID())
	}
}

func TestRelayCandidateRoundTrip(t *testing.T) {
	relay, url := startRelay(t)
	_, aliceInbox, _ := runClient(t, url, "alice")
	bob, _, _ := runClient(t, url, "bob")
	waitForPeers(t, relay, "alice", "bob")

	mid := "0"
	index := uint16(0)
	candidate := transport.Signal{Type: transport.SignalCandidate, Candidate: &transport.Candidate{
		Candidate:     "candidate:1 1 udp 2130706431 127.0.0.1 50000 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &index,
	}}
	if err := bob.SendSignal(context.Background(), "alice", candidate); err != nil {
		t.Fatalf("SendSignal error: %v", err)
	}

	envelope := testutil.RequireReceive(t, aliceInbox, 5*time.Second, "alice waiting for candidate")
	got := envelope.Signal.Candidate
	if got == nil || got.Candidate != candidate.Candidate.Candidate ||
		got.SDPMid == nil || *got.SDPMid != "0" || got.SDPMLineIndex == nil || *got.SDPMLineIndex != 0 {
		t.Errorf("alice received candidate %+v", got)
	}
}

func TestRelayStampsSender(t *testing.T) {
	relay, url := startRelay(t)
	mallory, _, _ := runClient(t, url, "mallory")
	_, bobInbox, _ := runClient(t, url, "bob")
	waitForPeers(t, relay, "bob", "mallory")

	envelope := Envelope{From: "alice", To: "bob", Signal: transport.Signal{Type: transport.SignalOffer, SDP: "spoof"}}
	mallory.socket.writeMu.Lock()
	err := mallory.socket.conn.WriteJSON(envelope)
	mallory.socket.writeMu.Unlock()
	if err != nil {
		t.Fatalf("WriteJSON error: %v", err)
	}

	got := testutil.RequireReceive(t, bobInbox, 5*time.Second, "bob waiting for spoofed offer")
	if got.From != "mallory" {
		t.Errorf("From = %q, want the relay to stamp mallory", got.From)
	}
}

func TestRelayDropsUnknownAndInvalid(t *testing.T) {
	relay, url := startRelay(t)
	alice, _, aliceResult := runClient(t, url, "alice")
	_, bobInbox, _ := runClient(t, url, "bob")
	waitForPeers(t, relay, "alice", "bob")
	ctx := context.Background()

	if err := alice.SendSignal(ctx, "nobody", transport.Signal{Type: transport.SignalOffer, SDP: "lost"}); err != nil {
		t.Fatalf("SendSignal error: %v", err)
	}
	if err := alice.SendSignal(ctx, "bob", transport.Signal{Type: transport.SignalAnswer}); err != nil {
		t.Fatalf("SendSignal error: %v", err)
	}
	if err := alice.SendSignal(ctx, "bob", transport.Signal{Type: transport.SignalAnswer, SDP: "kept"}); err != nil {
		t.Fatalf("SendSignal error: %v", err)
	}

	// Frames are relayed in order, so the first thing bob sees is the
	// valid answer.
	got := testutil.RequireReceive(t, bobInbox, 5*time.Second, "bob waiting for answer")
	if got.Signal.SDP != "kept" {
		t.Errorf("bob received %+v, want the valid answer", got)
	}
	testutil.RequireNoReceive(t, aliceResult, 20*time.Millisecond, "alice must stay connected")
}

func TestRelayReplacesDuplicatePeer(t *testing.T) {
	relay, url := startRelay(t)
	alice, _, _ := runClient(t, url, "alice")
	_, _, firstResult := runClient(t, url, "bob")
	waitForPeers(t, relay, "alice", "bob")

	_, secondInbox, _ := runClient(t, url, "bob")
	if err := testutil.RequireReceive(t, firstResult, 5*time.Second, "first bob socket closed"); err == nil {
		t.Error("replaced client's Run returned nil, want a read error")
	}

	if err := alice.SendSignal(context.Background(), "bob", transport.Signal{Type: transport.SignalOffer, SDP: "to second"}); err != nil {
		t.Fatalf("SendSignal error: %v", err)
	}
	got := testutil.RequireReceive(t, secondInbox, 5*time.Second, "second bob waiting")
	if got.Signal.SDP != "to second" {
		t.Errorf("second bob received %+v", got)
	}
}

func TestRelayDropsOversizedFrame(t *testing.T) {
	relay, url := startRelay(t)
	alice, _, aliceResult := runClient(t, url, "alice")
	_, bobInbox, _ := runClient(t, url, "bob")
	waitForPeers(t, relay, "alice", "bob")

	// The write itself may fail once the relay hangs up mid-frame.
	oversized := transport.Signal{Type: transport.SignalOffer, SDP: strings.Repeat("a", 2*maxFrameSize)}
	_ = alice.SendSignal(context.Background(), "bob", oversized)

	if err := testutil.RequireReceive(t, aliceResult, 5*time.Second, "alice Run after oversized frame"); err == nil {
		t.Error("alice Run returned nil after the relay dropped her")
	}
	waitForPeers(t, relay, "bob")
	testutil.RequireNoReceive(t, bobInbox, 100*time.Millisecond, "oversized offer reached bob")
}

func TestRelayRequiresPeerID(t *testing.T) {
	_, url := startRelay(t)
	response, err := http.Get("http" + strings.TrimPrefix(url, "ws"))
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	response.Body.Close()
	if response.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", response.StatusCode)
	}

	if _, err := Dial(context.Background(), url, "", testLogger()); err == nil {
		t.Error("Dial with empty peer id succeeded")
	}
}

func TestClientCloseEndsRun(t *testing.T) {
	relay, url := startRelay(t)
	client, _, result := runClient(t, url, "alice")
	waitForPeers(t, relay, "alice")

	if err := client.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := testutil.RequireReceive(t, result, 5*time.Second, "Run after Close"); err != nil {
		t.Errorf("Run after Close = %v, want nil", err)
	}
	waitForPeers(t, relay)
}

func TestClientRunCanceled(t *testing.T) {
	_, url := startRelay(t)
	client, err := Dial(context.Background(), url, "alice", testLogger())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- client.Run(ctx, func(Envelope) {}) }()
	cancel()

	if err := testutil.RequireReceive(t, result, 5*time.Second, "Run after cancel"); !errors.Is(err, context.Canceled) {
		t.Errorf("Run after cancel = %v, want context.Canceled", err)
	}
}

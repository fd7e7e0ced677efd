// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOpen is returned by Send before the connection is
	// established or after it has closed.
	ErrNotOpen = errors.New("transport connection is not open")

	// ErrDestroyed is returned by Signal after Destroy.
	ErrDestroyed = errors.New("transport connection destroyed")

	// ErrInvalidSignal reports a negotiation payload that is malformed
	// or arrives in the wrong negotiation state.
	ErrInvalidSignal = errors.New("invalid signal")
)

// Config configures one connection.
type Config struct {
	// Initiator selects the side that creates the data channel and the
	// SDP offer. Exactly one side of a pair must be the initiator.
	Initiator bool

	// ICEServers is the STUN/TURN list handed to ICE gathering.
	ICEServers []ICEServer
}

// Handlers receives everything a connection reports. Nil fields are
// skipped.
type Handlers struct {
	// OnSignal delivers a negotiation payload that must reach the
	// remote peer's Connection.Signal.
	OnSignal func(Signal)

	// OnConnect reports that the connection is established and Send
	// is permitted.
	OnConnect func()

	// OnClose reports that the connection closed, whether by Destroy,
	// by the remote peer, or by transport failure. It is the last
	// handler invoked and runs at most once.
	OnClose func()

	// OnError reports an asynchronous transport failure.
	OnError func(error)

	// OnData delivers one inbound data channel message. The slice is
	// owned by the handler.
	OnData func([]byte)
}

// Connection is one transport link to one remote peer.
type Connection interface {
	// Signal applies a negotiation payload produced by the remote
	// peer's OnSignal handler.
	Signal(signal Signal) error

	// Send transmits one message. Returns ErrNotOpen unless the
	// connection is established.
	Send(data []byte) error

	// Connected reports whether the connection is established.
	Connected() bool

	// Destroy tears the connection down. OnClose follows
	// asynchronously if it has not already run.
	Destroy() error
}

// Factory creates connections.
type Factory interface {
	NewConnection(config Config, handlers Handlers) (Connection, error)
}

// SignalType distinguishes negotiation payloads.
type SignalType string

const (
	SignalOffer     SignalType = "offer"
	SignalAnswer    SignalType = "answer"
	SignalCandidate SignalType = "candidate"
)

// Signal is one negotiation payload. Offers and answers carry SDP;
// candidates carry one trickled ICE candidate.
type Signal struct {
	Type      SignalType `json:"type"`
	SDP       string     `json:"sdp,omitempty"`
	Candidate *Candidate `json:"candidate,omitempty"`
}

// Candidate mirrors the RTCIceCandidateInit dictionary.
type Candidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// Validate checks that s carries the payload its type requires.
func (s Signal) Validate() error {
	switch s.Type {
	case SignalOffer, SignalAnswer:
		if s.SDP == "" {
			return fmt.Errorf("%w: %s without sdp", ErrInvalidSignal, s.Type)
		}
	case SignalCandidate:
		if s.Candidate == nil {
			return fmt.Errorf("%w: candidate signal without candidate", ErrInvalidSignal)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidSignal, s.Type)
	}
	return nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session composes a peer.Manager with a peercrypt.Manager into
// an end-to-end encrypted messaging endpoint.
//
// A [Session] performs the public key exchange: whenever a peer
// connects, it sends a control message carrying the local public key,
// and it registers the key each peer sends in return, emitting
// public-key-updated when a key is new or has changed. With
// [Options.Encrypt] set, text and file content is sealed before it
// leaves and opened on arrival; a message that fails to open is
// dropped and reported as encryption-error.
//
// Signal events from the peer manager are relayed through the
// configured [Signaler]; [Session.HandleRemoteSignal] accepts signals
// arriving from the other direction and answers offers from peers that
// have not been connected yet.
//
// Session listeners see application traffic only. Control messages are
// consumed internally, and message-sent and message-received carry
// plaintext content.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/bureau-foundation/peerlink/lib/clock"
	"github.com/bureau-foundation/peerlink/lib/event"
	"github.com/bureau-foundation/peerlink/lib/message"
	"github.com/bureau-foundation/peerlink/lib/peercrypt"
	"github.com/bureau-foundation/peerlink/peer"
	"github.com/bureau-foundation/peerlink/transport"
)

// ControlPublicKey is the Metadata["control"] value of a key exchange
// message. Its Content is the sender's base64 public key.
const ControlPublicKey = "public-key"

// ErrSignaling wraps a failure to relay a signal to a remote peer.
var ErrSignaling = errors.New("signaling failed")

// Signaler delivers negotiation payloads to a remote peer.
type Signaler interface {
	SendSignal(ctx context.Context, to string, signal transport.Signal) error
}

// Options configures a Session.
type Options struct {
	// LocalID is this endpoint's peer id, stamped as Sender on every
	// outgoing message.
	LocalID string

	// Encrypt seals text and file content with the peer's public key.
	Encrypt bool

	// Signaler relays signal events. When nil, signal events are only
	// forwarded to listeners and the host relays them itself.
	Signaler Signaler

	// Clock stamps outgoing messages. Nil means clock.Real.
	Clock clock.Clock
}

// Session is one messaging endpoint. Safe for concurrent use.
type Session struct {
	crypto  *peercrypt.Manager
	peers   *peer.Manager
	options Options
	logger  *slog.Logger
	events  *event.Emitter[peer.Event]
}

// New creates a Session and subscribes it to every event of peers.
func New(crypto *peercrypt.Manager, peers *peer.Manager, options Options, logger *slog.Logger) *Session {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	s := &Session{
		crypto:  crypto,
		peers:   peers,
		options: options,
		logger:  logger,
		events:  event.NewEmitter[peer.Event](logger),
	}

	peers.AddListener(event.Signal, s.handleSignal)
	peers.AddListener(event.PeerConnected, s.handlePeerConnected)
	peers.AddListener(event.MessageReceived, s.handleMessageReceived)
	peers.AddListener(event.PeerDisconnected, s.forward)
	peers.AddListener(event.ConnectionError, s.forward)
	return s
}

// AddListener registers listener for name.
func (s *Session) AddListener(name event.Name, listener peer.Listener) {
	s.events.On(name, listener)
}

// LocalID returns the configured local peer id.
func (s *Session) LocalID() string {
	return s.options.LocalID
}

// PublicKey returns the local base64 public key.
func (s *Session) PublicKey() string {
	return s.crypto.PublicKey()
}

// Peers returns the underlying connection manager.
func (s *Session) Peers() *peer.Manager {
	return s.peers
}

// Connect opens a connection to peerID as the initiator.
func (s *Session) Connect(ctx context.Context, peerID string) error {
	return s.peers.Connect(ctx, peerID, true)
}

// Disconnect closes the connection to peerID.
func (s *Session) Disconnect(peerID string) {
	s.peers.Disconnect(peerID)
}

// Close disconnects every peer.
func (s *Session) Close() {
	s.peers.DisconnectAll()
}

// Send builds a message of the given kind and sends it to peerID,
// encrypting content first when encryption is enabled. It returns the
// message as the caller wrote it, with plaintext content.
func (s *Session) Send(ctx context.Context, peerID string, kind message.Kind, content string, metadata map[string]any) (message.Message, error) {
	msg := message.New(kind, content, s.options.LocalID, peerID, s.options.Clock.Now())
	if len(metadata) > 0 {
		msg.Metadata = maps.Clone(metadata)
	}
	if kind == message.KindControl {
		return message.Message{}, fmt.Errorf("sending to peer %q: control messages are reserved: %w", peerID, message.ErrInvalid)
	}
	if err := msg.Validate(); err != nil {
		return message.Message{}, fmt.Errorf("sending to peer %q: %w", peerID, err)
	}

	wire := msg
	if s.options.Encrypt {
		sealed, err := s.crypto.EncryptMessage(peerID, content)
		if err != nil {
			s.emit(peer.Event{Name: event.EncryptionError, PeerID: peerID, Message: &msg, Err: err})
			return message.Message{}, err
		}
		wire.Content = sealed
	}

	if err := s.peers.SendMessage(ctx, peerID, wire); err != nil {
		return message.Message{}, err
	}

	s.emit(peer.Event{Name: event.MessageSent, PeerID: peerID, Message: &msg})
	return msg, nil
}

// HandleRemoteSignal applies a signal that from sent over the
// signaling channel. An offer from a peer with no registered
// connection creates one as the responder first.
func (s *Session) HandleRemoteSignal(ctx context.Context, from string, signal transport.Signal) error {
	if signal.Type == transport.SignalOffer {
		if _, known := s.peers.State(from); !known {
			s.logger.Info("accepting connection offer", "peer", from)
			err := s.peers.Connect(ctx, from, false)
			if err != nil && !errors.Is(err, peer.ErrDuplicateConnection) {
				return err
			}
		}
	}
	return s.peers.HandleSignal(ctx, from, signal)
}

func (s *Session) emit(ev peer.Event) {
	s.events.Emit(ev.Name, ev)
}

func (s *Session) forward(ev peer.Event) {
	s.emit(ev)
}

func (s *Session) handleSignal(ev peer.Event) {
	s.emit(ev)
	if s.options.Signaler == nil {
		return
	}
	if err := s.options.Signaler.SendSignal(context.Background(), ev.PeerID, *ev.Signal); err != nil {
		s.logger.Warn("relaying signal failed", "peer", ev.PeerID, "type", ev.Signal.Type, "error", err)
		s.emit(peer.Event{
			Name:   event.ConnectionError,
			PeerID: ev.PeerID,
			Err:    fmt.Errorf("relaying %s signal to peer %q: %w: %w", ev.Signal.Type, ev.PeerID, ErrSignaling, err),
		})
	}
}

// handlePeerConnected announces the local public key, then reports the
// connection.
func (s *Session) handlePeerConnected(ev peer.Event) {
	announcement := message.New(message.KindControl, s.crypto.PublicKey(), s.options.LocalID, ev.PeerID, s.options.Clock.Now())
	announcement.Metadata = map[string]any{"control": ControlPublicKey}
	if err := s.peers.SendMessage(context.Background(), ev.PeerID, announcement); err != nil {
		s.logger.Warn("sending public key failed", "peer", ev.PeerID, "error", err)
	}
	s.emit(ev)
}

func (s *Session) handleMessageReceived(ev peer.Event) {
	msg := *ev.Message

	if msg.Kind == message.KindControl {
		switch msg.Control() {
		case ControlPublicKey:
			s.registerPeerKey(ev.PeerID, msg)
		default:
			s.logger.Debug("ignoring control message", "peer", ev.PeerID, "control", msg.Control())
		}
		return
	}

	if s.options.Encrypt {
		plaintext, err := s.crypto.DecryptMessage(ev.PeerID, msg.Content)
		if err != nil {
			s.logger.Warn("dropping message that failed to decrypt", "peer", ev.PeerID, "message", msg.ID, "error", err)
			s.emit(peer.Event{Name: event.EncryptionError, PeerID: ev.PeerID, Message: &msg, Err: err})
			return
		}
		msg.Content = plaintext
	}
	s.emit(peer.Event{Name: event.MessageReceived, PeerID: ev.PeerID, Message: &msg})
}

// registerPeerKey stores the key from a public-key control message
// under the id of the connection it arrived on.
func (s *Session) registerPeerKey(peerID string, msg message.Message) {
	previous, known := s.crypto.PeerPublicKey(peerID)
	if _, err := s.crypto.RegisterPeerPublicKey(peerID, msg.Content); err != nil {
		s.logger.Warn("rejecting peer public key", "peer", peerID, "error", err)
		s.emit(peer.Event{Name: event.EncryptionError, PeerID: peerID, Err: err})
		return
	}
	if known && previous == msg.Content {
		return
	}
	s.logger.Info("peer public key registered",
		"peer", peerID,
		"fingerprint", peercrypt.Fingerprint(msg.Content),
		"replaced", known,
	)
	s.emit(peer.Event{Name: event.PublicKeyUpdated, PeerID: peerID, PublicKey: msg.Content})
}

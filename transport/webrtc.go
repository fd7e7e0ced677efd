// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

// Compile-time interface checks.
var (
	_ Factory    = (*WebRTCFactory)(nil)
	_ Connection = (*webrtcConnection)(nil)
)

// dataChannelLabel names the single application data channel the
// initiator opens on each PeerConnection.
const dataChannelLabel = "peerlink"

// ErrConnectionFailed is reported through OnError when ICE or DTLS
// fails and the PeerConnection cannot recover.
var ErrConnectionFailed = errors.New("peer connection failed")

// WebRTCFactory creates pion/webrtc connections with trickle ICE.
type WebRTCFactory struct {
	api    *webrtc.API
	logger *slog.Logger
}

// NewWebRTCFactory creates a factory. Loopback candidates are enabled
// so that two peers on one machine (and test environments where
// loopback is the only interface) can connect.
func NewWebRTCFactory(logger *slog.Logger) *WebRTCFactory {
	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)

	return &WebRTCFactory{
		api:    webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine)),
		logger: logger,
	}
}

// webrtcConnection wraps one PeerConnection and its data channel.
//
// mu protects the negotiation state: the data channel pointer, whether
// the local description has been signaled (local candidates gathered
// before that are held back so the offer or answer always reaches the
// peer first), and remote candidates received before the remote
// description.
type webrtcConnection struct {
	connection *webrtc.PeerConnection
	initiator  bool
	dispatch   *dispatcher
	logger     *slog.Logger

	mu                sync.Mutex
	channel           *webrtc.DataChannel
	localSignaled     bool
	pendingLocal      []Candidate
	pendingRemote     []webrtc.ICECandidateInit
	remoteDescription bool

	connected atomic.Bool
	destroyed atomic.Bool
}

// NewConnection creates a PeerConnection. An initiator creates the
// ordered data channel and signals an offer; a responder waits for
// Signal to deliver the offer.
func (f *WebRTCFactory) NewConnection(config Config, handlers Handlers) (Connection, error) {
	peerConnection, err := f.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: pionICEServers(config.ICEServers),
	})
	if err != nil {
		return nil, fmt.Errorf("creating PeerConnection: %w", err)
	}

	connection := &webrtcConnection{
		connection: peerConnection,
		initiator:  config.Initiator,
		dispatch:   &dispatcher{handlers: handlers},
		logger:     f.logger,
	}

	peerConnection.OnICECandidate(connection.handleLocalCandidate)
	peerConnection.OnConnectionStateChange(connection.handleStateChange)

	if !config.Initiator {
		peerConnection.OnDataChannel(connection.attachDataChannel)
		return connection, nil
	}

	ordered := true
	channel, err := peerConnection.CreateDataChannel(dataChannelLabel, &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		peerConnection.Close()
		return nil, fmt.Errorf("creating data channel: %w", err)
	}
	connection.attachDataChannel(channel)

	offer, err := peerConnection.CreateOffer(nil)
	if err != nil {
		peerConnection.Close()
		return nil, fmt.Errorf("creating SDP offer: %w", err)
	}
	if err := peerConnection.SetLocalDescription(offer); err != nil {
		peerConnection.Close()
		return nil, fmt.Errorf("setting local description: %w", err)
	}
	connection.signalLocalDescription(SignalOffer, offer.SDP)

	return connection, nil
}

func (c *webrtcConnection) Signal(signal Signal) error {
	if err := signal.Validate(); err != nil {
		return err
	}
	if c.destroyed.Load() {
		return ErrDestroyed
	}

	switch signal.Type {
	case SignalOffer:
		return c.acceptOffer(signal.SDP)
	case SignalAnswer:
		return c.acceptAnswer(signal.SDP)
	default:
		return c.addRemoteCandidate(*signal.Candidate)
	}
}

// acceptOffer applies the initiator's offer and signals an answer.
func (c *webrtcConnection) acceptOffer(sdp string) error {
	if c.initiator {
		return fmt.Errorf("%w: initiator received an offer", ErrInvalidSignal)
	}

	if err := c.setRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		return err
	}

	answer, err := c.connection.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("creating SDP answer: %w", err)
	}
	if err := c.connection.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("setting local description: %w", err)
	}
	c.signalLocalDescription(SignalAnswer, answer.SDP)
	return nil
}

// acceptAnswer applies the responder's answer.
func (c *webrtcConnection) acceptAnswer(sdp string) error {
	if !c.initiator {
		return fmt.Errorf("%w: responder received an answer", ErrInvalidSignal)
	}
	return c.setRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

// setRemoteDescription applies description and then any candidates
// that arrived ahead of it.
func (c *webrtcConnection) setRemoteDescription(description webrtc.SessionDescription) error {
	if err := c.connection.SetRemoteDescription(description); err != nil {
		return fmt.Errorf("setting remote %s: %w", description.Type, err)
	}

	c.mu.Lock()
	c.remoteDescription = true
	pending := c.pendingRemote
	c.pendingRemote = nil
	c.mu.Unlock()

	for _, candidate := range pending {
		if err := c.connection.AddICECandidate(candidate); err != nil {
			c.logger.Warn("adding buffered ICE candidate failed", "error", err)
		}
	}
	return nil
}

func (c *webrtcConnection) addRemoteCandidate(candidate Candidate) error {
	init := webrtc.ICECandidateInit{
		Candidate:        candidate.Candidate,
		SDPMid:           candidate.SDPMid,
		SDPMLineIndex:    candidate.SDPMLineIndex,
		UsernameFragment: candidate.UsernameFragment,
	}

	c.mu.Lock()
	if !c.remoteDescription {
		c.pendingRemote = append(c.pendingRemote, init)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.connection.AddICECandidate(init); err != nil {
		return fmt.Errorf("adding ICE candidate: %w", err)
	}
	return nil
}

// signalLocalDescription emits the offer or answer, then releases any
// local candidates gathered while it was being set.
func (c *webrtcConnection) signalLocalDescription(signalType SignalType, sdp string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dispatch.signal(Signal{Type: signalType, SDP: sdp})
	c.localSignaled = true
	for index := range c.pendingLocal {
		c.dispatch.signal(Signal{Type: SignalCandidate, Candidate: &c.pendingLocal[index]})
	}
	c.pendingLocal = nil
}

// handleLocalCandidate trickles one gathered candidate. A nil candidate
// marks the end of gathering and is not forwarded.
func (c *webrtcConnection) handleLocalCandidate(candidate *webrtc.ICECandidate) {
	if candidate == nil {
		return
	}
	init := candidate.ToJSON()
	converted := Candidate{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.localSignaled {
		c.pendingLocal = append(c.pendingLocal, converted)
		return
	}
	c.dispatch.signal(Signal{Type: SignalCandidate, Candidate: &converted})
}

func (c *webrtcConnection) handleStateChange(state webrtc.PeerConnectionState) {
	c.logger.Debug("peer connection state change", "state", state.String())

	switch state {
	case webrtc.PeerConnectionStateFailed:
		c.dispatch.fail(ErrConnectionFailed)
		c.finish()
	case webrtc.PeerConnectionStateClosed:
		c.finish()
	}
}

// attachDataChannel wires the application data channel. The responder
// receives it through OnDataChannel; channels with any other label are
// closed.
func (c *webrtcConnection) attachDataChannel(channel *webrtc.DataChannel) {
	if channel.Label() != dataChannelLabel {
		c.logger.Warn("closing unexpected data channel", "label", channel.Label())
		channel.Close()
		return
	}

	c.mu.Lock()
	c.channel = channel
	c.mu.Unlock()

	channel.OnOpen(func() {
		c.connected.Store(true)
		c.dispatch.connect()
	})
	channel.OnMessage(func(message webrtc.DataChannelMessage) {
		c.dispatch.data(append([]byte(nil), message.Data...))
	})
	channel.OnError(func(err error) {
		c.dispatch.fail(fmt.Errorf("data channel: %w", err))
	})
	channel.OnClose(c.finish)
}

func (c *webrtcConnection) Send(data []byte) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	if channel == nil || !c.connected.Load() {
		return ErrNotOpen
	}
	if err := channel.Send(data); err != nil {
		return fmt.Errorf("data channel send: %w", err)
	}
	return nil
}

func (c *webrtcConnection) Connected() bool {
	return c.connected.Load()
}

// Destroy closes the PeerConnection. OnClose is queued directly so
// that it is delivered even if pion never reports the Closed state.
func (c *webrtcConnection) Destroy() error {
	if !c.destroyed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.connection.Close()
	c.finish()
	if err != nil {
		return fmt.Errorf("closing PeerConnection: %w", err)
	}
	return nil
}

// finish marks the connection closed and queues OnClose once.
func (c *webrtcConnection) finish() {
	c.connected.Store(false)
	if c.dispatch.close() && !c.destroyed.Load() {
		// Remote close or failure: release pion resources too.
		go c.connection.Close()
	}
}

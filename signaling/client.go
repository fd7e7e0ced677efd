// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/peerlink/lib/netutil"
	"github.com/bureau-foundation/peerlink/transport"
)

// Client is one peer's connection to a Relay.
type Client struct {
	peerID string
	socket *socket
	logger *slog.Logger
	closed atomic.Bool
}

// Dial connects to the relay at serverURL (ws:// or wss://) as peerID.
func Dial(ctx context.Context, serverURL, peerID string, logger *slog.Logger) (*Client, error) {
	if peerID == "" {
		return nil, errors.New("signaling: peer id is required")
	}
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parsing signaling server URL %q: %w", serverURL, err)
	}
	query := parsed.Query()
	query.Set("peer", peerID)
	parsed.RawQuery = query.Encode()

	conn, response, err := websocket.DefaultDialer.DialContext(ctx, parsed.String(), nil)
	if err != nil {
		if response != nil {
			return nil, fmt.Errorf("dialing signaling server %s: %s: %w", serverURL, response.Status, err)
		}
		return nil, fmt.Errorf("dialing signaling server %s: %w", serverURL, err)
	}

	logger.Info("connected to signaling server", "server", serverURL, "peer", peerID)
	return &Client{
		peerID: peerID,
		socket: &socket{conn: conn},
		logger: logger,
	}, nil
}

// PeerID returns the id this client registered with.
func (c *Client) PeerID() string {
	return c.peerID
}

// SendSignal sends signal to peer to through the relay.
func (c *Client) SendSignal(ctx context.Context, to string, signal transport.Signal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.socket.write(Envelope{From: c.peerID, To: to, Signal: signal}); err != nil {
		return fmt.Errorf("sending %s signal to %q: %w", signal.Type, to, err)
	}
	return nil
}

// Run reads envelopes and passes each to handler until ctx is done,
// Close is called, or the relay drops the connection. It returns nil
// after Close, ctx.Err() after cancellation, and the read error
// otherwise.
func (c *Client) Run(ctx context.Context, handler func(Envelope)) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.socket.conn.Close()
		case <-done:
		}
	}()

	for {
		var envelope Envelope
		if err := c.socket.conn.ReadJSON(&envelope); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if c.closed.Load() {
				return nil
			}
			if netutil.IsExpectedCloseError(err) {
				c.logger.Info("signaling server closed the connection", "peer", c.peerID, "error", err)
			}
			return fmt.Errorf("reading from signaling server: %w", err)
		}
		if err := envelope.Signal.Validate(); err != nil {
			c.logger.Warn("ignoring invalid signal", "from", envelope.From, "error", err)
			continue
		}
		handler(envelope)
	}
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.socket.writeMu.Lock()
	c.socket.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.socket.writeMu.Unlock()
	return c.socket.conn.Close()
}

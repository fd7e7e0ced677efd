// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package message defines the application message envelope exchanged
// between peers and its data-channel wire format.
//
// A [Message] travels as one CBOR data item per data channel message
// (see lib/codec). Encryption, when the host enables it, replaces
// Content with a peercrypt envelope and leaves every other field in
// the clear: routing metadata is never encrypted.
package message

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/peerlink/lib/codec"
)

// Kind classifies a message.
type Kind string

const (
	// KindText is a chat message; Content is UTF-8 text.
	KindText Kind = "text"
	// KindFile carries file data; Content is base64 and Metadata holds
	// the file name and size.
	KindFile Kind = "file"
	// KindControl carries protocol traffic between peerlink instances,
	// such as the public key announcement. Metadata["control"] names
	// the control action.
	KindControl Kind = "control"
)

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindFile, KindControl:
		return true
	}
	return false
}

// ErrInvalid reports a decoded message that is structurally unusable.
var ErrInvalid = errors.New("invalid message")

// Message is the application payload envelope. The same type is used
// for plaintext and encrypted messages; only Content differs.
// Timestamp is the creation time in Unix milliseconds.
type Message struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"type"`
	Content   string         `json:"content"`
	Sender    string         `json:"sender"`
	Receiver  string         `json:"receiver"`
	Timestamp int64          `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// New returns a message with a random UUID and the given creation time.
func New(kind Kind, content, sender, receiver string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		Content:   content,
		Sender:    sender,
		Receiver:  receiver,
		Timestamp: now.UnixMilli(),
	}
}

// Time returns Timestamp as a time.Time.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Control returns the control action of a KindControl message, or ""
// for other kinds and control messages without an action.
func (m Message) Control() string {
	if m.Kind != KindControl {
		return ""
	}
	action, _ := m.Metadata["control"].(string)
	return action
}

// Validate checks the fields every peer must set.
func (m Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalid)
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalid, m.Kind)
	}
	return nil
}

// Encode serializes m for a data channel.
func Encode(m Message) ([]byte, error) {
	data, err := codec.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding message %s: %w", m.ID, err)
	}
	return data, nil
}

// Decode parses and validates one data channel payload.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := codec.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decoding message (%d bytes): %w", len(data), err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

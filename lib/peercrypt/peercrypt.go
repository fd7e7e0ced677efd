// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peercrypt

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/nacl/box"
)

// PublicKeySize is the length in bytes of an X25519 public key as
// accepted by RegisterPeerPublicKey (after base64 decoding).
const PublicKeySize = 32

// NonceSize is the length in bytes of the random nonce prefixed to
// every envelope. Any decoded envelope of this length or shorter is
// malformed.
const NonceSize = 24

// Overhead is the number of bytes box adds to the plaintext (the
// Poly1305 authenticator).
const Overhead = box.Overhead

// fingerprintSize is the number of BLAKE3 digest bytes rendered by
// Fingerprint.
const fingerprintSize = 8

var (
	// ErrInvalidKeyEncoding reports a peer public key that is not valid
	// standard base64 or does not decode to PublicKeySize bytes.
	ErrInvalidKeyEncoding = errors.New("invalid public key encoding")

	// ErrPeerKeyNotFound reports an encrypt or decrypt addressed to a
	// peer with no registered public key.
	ErrPeerKeyNotFound = errors.New("peer public key not found")

	// ErrMalformedEnvelope reports an envelope that is not valid base64
	// or is too short to hold a nonce and ciphertext.
	ErrMalformedEnvelope = errors.New("malformed encrypted envelope")

	// ErrAuthenticationFailure reports an envelope that failed box
	// authentication: wrong key pair, tampered ciphertext, or a
	// mismatched nonce. The cause is deliberately not distinguished.
	ErrAuthenticationFailure = errors.New("message authentication failed")
)

// peerKey is one registry entry. shared is the box shared key
// precomputed from the peer's public key and the local secret key.
type peerKey struct {
	public [PublicKeySize]byte
	shared [32]byte
}

// Manager encrypts and decrypts messages addressed by peer identifier.
// Safe for concurrent use.
type Manager struct {
	publicKey  *[PublicKeySize]byte
	privateKey *[32]byte

	mu    sync.RWMutex
	peers map[string]*peerKey
}

// New generates a fresh local key pair and returns a Manager with an
// empty peer registry.
func New() (*Manager, error) {
	publicKey, privateKey, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating box key pair: %w", err)
	}
	return &Manager{
		publicKey:  publicKey,
		privateKey: privateKey,
		peers:      make(map[string]*peerKey),
	}, nil
}

// PublicKey returns the local public key, base64-encoded.
func (m *Manager) PublicKey() string {
	return base64.StdEncoding.EncodeToString(m.publicKey[:])
}

// RegisterPeerPublicKey stores the public key for peerID, replacing any
// previous key for the same peer. Returns ErrInvalidKeyEncoding (and
// leaves the registry unchanged) if the key does not decode to exactly
// PublicKeySize bytes.
func (m *Manager) RegisterPeerPublicKey(peerID, publicKeyBase64 string) (bool, error) {
	decoded, err := base64.StdEncoding.DecodeString(publicKeyBase64)
	if err != nil {
		return false, fmt.Errorf("registering public key for peer %q: %w", peerID, ErrInvalidKeyEncoding)
	}
	if len(decoded) != PublicKeySize {
		return false, fmt.Errorf("registering public key for peer %q: got %d bytes, want %d: %w",
			peerID, len(decoded), PublicKeySize, ErrInvalidKeyEncoding)
	}

	entry := &peerKey{}
	copy(entry.public[:], decoded)
	box.Precompute(&entry.shared, &entry.public, m.privateKey)

	m.mu.Lock()
	m.peers[peerID] = entry
	m.mu.Unlock()
	return true, nil
}

// HasPeerPublicKey reports whether a public key is registered for peerID.
func (m *Manager) HasPeerPublicKey(peerID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.peers[peerID]
	return ok
}

// PeerPublicKey returns the registered public key for peerID,
// base64-encoded.
func (m *Manager) PeerPublicKey(peerID string) (string, bool) {
	entry := m.lookup(peerID)
	if entry == nil {
		return "", false
	}
	return base64.StdEncoding.EncodeToString(entry.public[:]), true
}

// EncryptMessage seals plaintext for peerID and returns the base64
// envelope. Each call draws a fresh random nonce, so encrypting the
// same plaintext twice yields different envelopes.
func (m *Manager) EncryptMessage(peerID, plaintext string) (string, error) {
	entry := m.lookup(peerID)
	if entry == nil {
		return "", fmt.Errorf("cannot encrypt message for peer %q: register the peer's public key first: %w",
			peerID, ErrPeerKeyNotFound)
	}

	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generating nonce for peer %q: %w", peerID, err)
	}

	envelope := make([]byte, NonceSize, NonceSize+len(plaintext)+Overhead)
	copy(envelope, nonce[:])
	envelope = box.SealAfterPrecomputation(envelope, []byte(plaintext), &nonce, &entry.shared)
	return base64.StdEncoding.EncodeToString(envelope), nil
}

// DecryptMessage opens a base64 envelope received from peerID. Returns
// ErrMalformedEnvelope for undecodable or truncated envelopes (without
// attempting decryption) and ErrAuthenticationFailure when the
// envelope does not authenticate under the registered key. An envelope
// that authenticates but does not hold UTF-8 text is ErrMalformedEnvelope.
func (m *Manager) DecryptMessage(peerID, envelopeBase64 string) (string, error) {
	entry := m.lookup(peerID)
	if entry == nil {
		return "", fmt.Errorf("cannot decrypt message from peer %q: register the peer's public key first: %w",
			peerID, ErrPeerKeyNotFound)
	}

	envelope, err := base64.StdEncoding.DecodeString(envelopeBase64)
	if err != nil {
		return "", fmt.Errorf("decrypting message from peer %q: invalid base64: %w", peerID, ErrMalformedEnvelope)
	}
	if len(envelope) <= NonceSize {
		return "", fmt.Errorf("decrypting message from peer %q: envelope is %d bytes, need more than %d: %w",
			peerID, len(envelope), NonceSize, ErrMalformedEnvelope)
	}

	var nonce [NonceSize]byte
	copy(nonce[:], envelope[:NonceSize])

	plaintext, ok := box.OpenAfterPrecomputation(nil, envelope[NonceSize:], &nonce, &entry.shared)
	if !ok {
		return "", fmt.Errorf("decrypting message from peer %q: %w", peerID, ErrAuthenticationFailure)
	}
	if !utf8.Valid(plaintext) {
		return "", fmt.Errorf("decrypting message from peer %q: plaintext is not valid UTF-8: %w", peerID, ErrMalformedEnvelope)
	}
	return string(plaintext), nil
}

// Fingerprint returns a short hex BLAKE3 digest of a base64 public key
// for log lines and display. Returns the empty string if the key is
// not valid base64.
func Fingerprint(publicKeyBase64 string) string {
	decoded, err := base64.StdEncoding.DecodeString(publicKeyBase64)
	if err != nil {
		return ""
	}
	digest := blake3.Sum256(decoded)
	return hex.EncodeToString(digest[:fingerprintSize])
}

func (m *Manager) lookup(peerID string) *peerKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.peers[peerID]
}

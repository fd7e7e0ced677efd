// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package peercrypt provides point-to-point authenticated encryption
// between peers using NaCl box (X25519, XSalsa20, Poly1305) from
// golang.org/x/crypto/nacl/box.
//
// A [Manager] owns one local key pair, generated in [New] and never
// exported beyond its public half. Peers are addressed by a
// host-assigned identifier: the host registers each peer's public key
// with [Manager.RegisterPeerPublicKey] (out of band, or through the
// session layer's key exchange) and then calls
// [Manager.EncryptMessage] and [Manager.DecryptMessage] by peer id.
//
// The wire envelope is
//
//	base64( nonce[NonceSize] || box ciphertext )
//
// with a fresh random nonce per message. Box authenticates with the
// counterparty's public key and the local secret key, so a successful
// open proves the message came from the holder of the matching secret
// key. A third party holding only public keys cannot open traffic
// addressed to someone else.
//
// Decryption failures caused by a wrong key and by tampered ciphertext
// are indistinguishable: both report [ErrAuthenticationFailure].
package peercrypt

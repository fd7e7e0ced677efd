// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides peerlink's standard CBOR encoding configuration.
//
// peerlink uses two serialization formats with a clear boundary:
//
//   - JSON for the signaling relay (WebSocket text frames) and
//     configuration-adjacent output, where humans and foreign
//     implementations read the payload.
//   - CBOR for application messages carried over peer data channels,
//     where both ends are peerlink.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// decoder is configured for input from untrusted peers: duplicate map
// keys are rejected and nesting depth is bounded.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// # Struct Tag Rules
//
// A `cbor` tag marks a type that is only ever CBOR. A `json` tag marks
// a type that may be serialized as both JSON and CBOR: fxamacker/cbor
// reads `json` tags when `cbor` tags are absent. Never put both tags on
// the same field.
package codec

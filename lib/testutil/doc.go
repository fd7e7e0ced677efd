// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for peerlink packages.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) for tests that wait on
// transport callbacks delivered from other goroutines.
// [RequireNoReceive] asserts the opposite: that nothing arrives within
// a short window, for callbacks that must be dropped.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no peerlink-internal dependencies.
package testutil

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for peerlink
// binaries.
//
// Configuration is loaded from a single file specified by either the
// PEERLINK_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search. Binaries that
// run without a file start from [Default] and apply flags on top.
//
// The file supports environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production is stricter by default:
// content encryption is forced on and a connect timeout is set.
//
// Variable expansion is performed on address fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. No other
// environment variables override config values.
//
// This package depends on the transport package only for the
// [transport.ICEServer] descriptor.
package config

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	originalCommit, originalDirty := GitCommit, GitDirty
	defer func() { GitCommit, GitDirty = originalCommit, originalDirty }()

	GitCommit = "abc1234"
	GitDirty = "false"
	if got := Info(); !strings.Contains(got, "(abc1234, ") || strings.Contains(got, "-dirty") {
		t.Errorf("Info() = %q, want clean commit abc1234", got)
	}

	GitDirty = "true"
	if got := Info(); !strings.Contains(got, "abc1234-dirty") {
		t.Errorf("Info() = %q, want dirty marker", got)
	}
}

func TestFull(t *testing.T) {
	got := Full()
	if !strings.HasPrefix(got, Info()) || !strings.Contains(got, "Go: ") {
		t.Errorf("Full() = %q", got)
	}
}

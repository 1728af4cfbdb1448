// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"testing"

	"github.com/loomchat/loom/internal/config"
)

func TestWatchTargetPrefersExplicitPath(t *testing.T) {
	if got := watchTarget("/etc/loom/config.toml"); got != "/etc/loom/config.toml" {
		t.Errorf("watchTarget = %q, want the explicit path", got)
	}
}

func TestWatchTargetFallsBackToDefault(t *testing.T) {
	want, err := config.Path()
	if err != nil {
		t.Skipf("default config path unavailable: %v", err)
	}
	if got := watchTarget(""); got != want {
		t.Errorf("watchTarget = %q, want %q", got, want)
	}
}

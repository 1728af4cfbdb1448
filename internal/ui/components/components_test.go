// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{5 * time.Second, "5s"},
		{59 * time.Second, "59s"},
		{60 * time.Second, "1m 0s"},
		{125 * time.Second, "2m 5s"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.d); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestSpinnerInactiveViewEmpty(t *testing.T) {
	s := NewSpinner()
	if got := s.View(); got != "" {
		t.Errorf("View() = %q for inactive spinner, want empty", got)
	}
}

func TestSpinnerStartStop(t *testing.T) {
	s := NewSpinner()
	if s.IsActive() {
		t.Error("IsActive() = true before Start")
	}
	if cmd := s.Start(); cmd == nil {
		t.Error("Start() returned nil cmd")
	}
	if !s.IsActive() {
		t.Error("IsActive() = false after Start")
	}
	s.Stop()
	if s.IsActive() {
		t.Error("IsActive() = true after Stop")
	}
}

func TestParseCodeBlocksPlainTextUnchanged(t *testing.T) {
	text := "hello\nworld"
	if got := ParseCodeBlocks(text, 80); got != text {
		t.Errorf("ParseCodeBlocks(%q) = %q, want unchanged", text, got)
	}
}

func TestParseCodeBlocksRendersFence(t *testing.T) {
	text := "before\n```go\nfmt.Println(1)\n```\nafter"
	got := ParseCodeBlocks(text, 80)
	if !strings.Contains(got, "before") || !strings.Contains(got, "after") {
		t.Error("surrounding text dropped")
	}
	if strings.Contains(got, "```") {
		t.Error("fence markers left in output")
	}
}

func TestParseCodeBlocksUnclosedFence(t *testing.T) {
	text := "```python\nprint(1)"
	got := ParseCodeBlocks(text, 80)
	if !strings.Contains(got, "print") {
		t.Error("unclosed code block content dropped")
	}
}

func TestDetectLanguage(t *testing.T) {
	// Chroma's analyser needs a distinctive sample.
	code := "#!/usr/bin/env python\nimport os\nprint(os.getcwd())\n"
	if got := detectLanguage(code); got == "" {
		t.Skip("analyser could not identify sample")
	}
}

func TestMarkdownRendererFallback(t *testing.T) {
	m := NewMarkdownRenderer(60)
	got := m.Render("**bold** text")
	if got == "" {
		t.Error("Render returned empty output")
	}
}

func TestWelcomeBannerContainsMessage(t *testing.T) {
	w := NewWelcomeBanner("Hi there")
	got := w.Render()
	if !strings.Contains(got, "Hi there") {
		t.Error("banner missing message text")
	}
	if !strings.Contains(got, "Loom") {
		t.Error("banner missing title")
	}
}

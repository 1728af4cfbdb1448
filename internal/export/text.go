// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/loomchat/loom/internal/model"
)

// TextExporter exports conversations to plain text.
type TextExporter struct {
	options *Options
}

// NewTextExporter creates a new plain text exporter.
func NewTextExporter(opts *Options) *TextExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &TextExporter{options: opts}
}

// Export converts a conversation to plain text: one block per message,
// prefixed with the sender's display name.
func (e *TextExporter) Export(conv *model.Conversation) ([]byte, error) {
	if err := validate(conv); err != nil {
		return nil, err
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString(title(conv) + "\n")
		sb.WriteString(strings.Repeat("=", len(title(conv))) + "\n\n")
	}

	for _, msg := range conv.Messages {
		if e.options.IncludeTimestamps {
			sb.WriteString(fmt.Sprintf("[%s] %s:\n", formatTimestamp(msg.Timestamp), msg.Role.DisplayName()))
		} else {
			sb.WriteString(fmt.Sprintf("%s:\n", msg.Role.DisplayName()))
		}
		sb.WriteString(msg.Content + "\n\n")
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for plain text.
func (e *TextExporter) FileExtension() string {
	return ".txt"
}

// MimeType returns the MIME type for plain text.
func (e *TextExporter) MimeType() string {
	return "text/plain"
}

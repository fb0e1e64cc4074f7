// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/jeranaias/chatstore/internal/model"
)

// TextExporter exports conversations as a timestamped flat transcript.
type TextExporter struct{}

// NewTextExporter creates a new plain text exporter.
func NewTextExporter() *TextExporter {
	return &TextExporter{}
}

// Export writes one "[timestamp] Speaker: content" line per message.
func (e *TextExporter) Export(conv model.Conversation) ([]byte, error) {
	var sb strings.Builder

	sb.WriteString(conv.Title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", len([]rune(conv.Title))))
	sb.WriteString("\n\n")

	for _, msg := range conv.Messages {
		content := msg.Content
		if msg.IsLoading {
			content = "(generating...)"
		}
		sb.WriteString(fmt.Sprintf("[%s] %s: %s\n\n",
			formatTimestamp(msg.Timestamp), msg.Role.DisplayName(), strings.TrimSpace(content)))
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

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/jeranaias/chatstore/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations as a heading-per-speaker transcript.
type MarkdownExporter struct {
	// IncludeMetadata adds the session header and per-message stats.
	IncludeMetadata bool
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter() *MarkdownExporter {
	return &MarkdownExporter{IncludeMetadata: true}
}

// Export converts a conversation to Markdown format.
func (e *MarkdownExporter) Export(conv model.Conversation) ([]byte, error) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(conv.Title)))

	if e.IncludeMetadata {
		sb.WriteString(fmt.Sprintf("- **Model**: %s\n", conv.Model))
		sb.WriteString(fmt.Sprintf("- **Created**: %s\n", formatTimestamp(conv.CreatedAt)))
		sb.WriteString(fmt.Sprintf("- **Last Updated**: %s\n", formatTimestamp(conv.UpdatedAt)))
		sb.WriteString(fmt.Sprintf("- **Messages**: %d\n", len(conv.Messages)))
		sb.WriteString("\n---\n\n")
	}

	for i, msg := range conv.Messages {
		sb.WriteString(fmt.Sprintf("## %s\n\n", msg.Role.DisplayName()))
		sb.WriteString(formatMessageContent(msg))
		sb.WriteString("\n\n")

		if msg.Role == model.RoleAssistant && e.IncludeMetadata {
			if stats := formatMessageStats(msg); stats != "" {
				sb.WriteString(stats)
				sb.WriteString("\n\n")
			}
		}

		if i < len(conv.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func formatMessageContent(msg model.Message) string {
	if msg.IsLoading {
		return "_Generating..._"
	}
	return strings.TrimSpace(msg.Content)
}

// formatMessageStats formats statistics for a message.
func formatMessageStats(msg model.Message) string {
	md := msg.Metadata
	if md == nil {
		return ""
	}

	var parts []string
	if md.Model != "" {
		parts = append(parts, fmt.Sprintf("Model: %s", md.Model))
	}
	if md.Tokens > 0 {
		parts = append(parts, fmt.Sprintf("Tokens: %d", md.Tokens))
	}
	if md.ProcessingTime > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %s", formatDuration(md.ProcessingTime)))
	}
	if len(parts) == 0 {
		return ""
	}

	return fmt.Sprintf("<sub>Stats: %s</sub>", strings.Join(parts, " | "))
}

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	// Only escape characters that would break formatting in headings
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// render.go - Plain-terminal rendering of conversation lists and transcripts.

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/chatstore/internal/model"
	"github.com/jeranaias/chatstore/internal/util"
)

const (
	titleColumnWidth = 36
	idColumnWidth    = 30
)

// =============================================================================
// LISTS
// =============================================================================

// renderList writes one line per conversation. The active conversation is
// marked with an asterisk.
func renderList(w io.Writer, convs []model.Conversation, currentID string) {
	if len(convs) == 0 {
		fmt.Fprintln(w, RenderConditional(DimStyle, "No conversations."))
		return
	}
	for i, c := range convs {
		marker := " "
		if c.ID == currentID {
			marker = "*"
		}
		pin := " "
		if c.IsPinned {
			pin = "^"
		}
		title := util.PadRight(util.TruncateWidth(util.OneLine(c.Title), titleColumnWidth), titleColumnWidth)
		line := fmt.Sprintf("%s%s %2d  %s  %s  %3d msgs  %s",
			marker, pin, i+1,
			util.PadRight(c.ID, idColumnWidth),
			title,
			c.MessageCount(),
			c.UpdatedAt.Local().Format("2006-01-02 15:04"),
		)
		if c.ID == currentID {
			line = RenderConditional(HighlightStyle, line)
		}
		fmt.Fprintln(w, line)
	}
}

// =============================================================================
// TRANSCRIPTS
// =============================================================================

// renderConversation writes a conversation as a plain transcript.
func renderConversation(w io.Writer, conv model.Conversation, showTimestamps bool) {
	fmt.Fprintln(w, RenderConditional(TitleStyle, conv.Title))
	fmt.Fprintln(w, RenderConditional(DimStyle, fmt.Sprintf("%s | %s | %d messages", conv.ID, conv.Model, conv.MessageCount())))
	fmt.Fprintln(w, RenderSeparator())

	width := GetTerminalWidth()
	for _, m := range conv.Messages {
		renderMessage(w, m, showTimestamps, width)
	}
}

func renderMessage(w io.Writer, m model.Message, showTimestamps bool, width int) {
	header := RenderRole(m.Role)
	if showTimestamps {
		header += " " + RenderConditional(DimStyle, m.Timestamp.Local().Format("15:04:05"))
	}
	header += " " + RenderConditional(DimStyle, "["+m.ID+"]")
	fmt.Fprintln(w, header)

	switch {
	case m.IsLoading:
		fmt.Fprintln(w, RenderConditional(DimStyle, "  (generating...)"))
	case m.Type == model.TypeError:
		fmt.Fprintln(w, RenderConditional(ErrorStyle, indent(WrapText(m.Content, width-2))))
	default:
		fmt.Fprintln(w, indent(WrapText(m.Content, width-2)))
	}
	fmt.Fprintln(w)
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// MARKDOWN
// =============================================================================

// renderMarkdown renders markdown for the terminal. It falls back to the
// raw text when the renderer cannot be built.
func renderMarkdown(content string) string {
	style := glamour.WithStandardStyle("notty")
	if ColorsEnabled() {
		style = glamour.WithAutoStyle()
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(GetTerminalWidth()))
	if err != nil {
		return content
	}
	out, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return out
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Centralized styling for chatstore commands.
//
// Colors are disabled for non-TTY output and respect NO_COLOR and
// FORCE_COLOR (https://no-color.org/).

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatstore/internal/model"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles and headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")). // Light gray
			Width(16)

	// SuccessStyle is used for success messages
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")). // Green
			Bold(true)

	// ErrorStyle is used for error messages
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// WarningStyle is used for warnings and pending states
	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Yellow/Orange

	// DimStyle is used for secondary information and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")) // Dim gray

	// SeparatorStyle is used for visual separators
	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // Dark gray

	// HighlightStyle marks the active conversation
	HighlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")). // Bright green
			Bold(true)

	// UserStyle labels user messages
	UserStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")). // Blue
			Bold(true)

	// AssistantStyle labels assistant messages
	AssistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("141")). // Purple
			Bold(true)

	// PromptStyle is the REPL prompt
	PromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)
)

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// RenderSeparator renders a horizontal separator line of the specified width.
// Default width is 70 characters if not specified.
func RenderSeparator(width ...int) string {
	w := 70
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return SeparatorStyle.Render(strings.Repeat("-", w))
}

// RenderLabel renders a label with consistent width.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}

// RenderRole renders the speaker label for a message.
func RenderRole(r model.Role) string {
	if r == model.RoleUser {
		return UserStyle.Render(r.DisplayName())
	}
	return AssistantStyle.Render(r.DisplayName())
}

// RenderConditional renders text with style if colors are enabled,
// otherwise returns the text unmodified.
func RenderConditional(style lipgloss.Style, text string) string {
	if !ColorsEnabled() {
		return text
	}
	return style.Render(text)
}

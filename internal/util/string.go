// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// UNICODE: Rune-aware truncation preserves multi-byte characters.

// TruncateRunes truncates a string to a maximum number of runes (characters).
// If the string is truncated, "..." is appended within the limit.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// TruncateWidth truncates a string to a maximum display width, counting
// double-width characters (CJK, emoji) as two columns.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// PadRight pads s with spaces up to the given display width.
// Strings already at or over the width are returned unchanged.
func PadRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// OneLine collapses all whitespace runs, including newlines, into single spaces.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

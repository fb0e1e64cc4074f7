// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/jeranaias/chatstore/internal/model"
)

// Search returns the conversations whose title or any message content
// contains query, ignoring case. A blank query matches everything. Order
// is preserved and the input is not modified.
func Search(convs []model.Conversation, query string) []model.Conversation {
	q := strings.TrimSpace(query)
	out := make([]model.Conversation, 0, len(convs))
	if q == "" {
		for _, c := range convs {
			out = append(out, c.Clone())
		}
		return out
	}

	fold := cases.Fold()
	needle := fold.String(q)
	for _, c := range convs {
		if matches(fold, c, needle) {
			out = append(out, c.Clone())
		}
	}
	return out
}

func matches(fold cases.Caser, c model.Conversation, needle string) bool {
	if strings.Contains(fold.String(c.Title), needle) {
		return true
	}
	for _, m := range c.Messages {
		if strings.Contains(fold.String(m.Content), needle) {
			return true
		}
	}
	return false
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"slices"

	"github.com/jeranaias/chatstore/internal/model"
)

// State is everything the store holds. Values returned by the Store are
// deep copies and may be freely modified by callers.
type State struct {
	// Conversations, most recent first.
	Conversations []model.Conversation
	// CurrentConversationID is empty when nothing is selected.
	CurrentConversationID string

	Settings model.Settings
	UIState  model.UIState

	// PendingDeletes lists conversations whose deletion is in flight,
	// in the order deletions started.
	PendingDeletes []string
	// DeletingConversationID is the most recently started pending deletion.
	DeletingConversationID string

	// Error is a human-readable message for the last failed deletion.
	Error string
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	convs := make([]model.Conversation, len(s.Conversations))
	for i, c := range s.Conversations {
		convs[i] = c.Clone()
	}
	s.Conversations = convs
	s.PendingDeletes = slices.Clone(s.PendingDeletes)
	return s
}

// Index returns the position of conversation id, or -1.
func (s State) Index(id string) int {
	for i := range s.Conversations {
		if s.Conversations[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns the conversation with the given id.
func (s State) Find(id string) (model.Conversation, bool) {
	i := s.Index(id)
	if i < 0 {
		return model.Conversation{}, false
	}
	return s.Conversations[i], true
}

// Current returns the active conversation.
func (s State) Current() (model.Conversation, bool) {
	if s.CurrentConversationID == "" {
		return model.Conversation{}, false
	}
	return s.Find(s.CurrentConversationID)
}

// IsDeleting reports whether a deletion of id is in flight.
func (s State) IsDeleting(id string) bool {
	return slices.Contains(s.PendingDeletes, id)
}

// Persisted returns the conversation list as it should be written to
// durable storage: pending deletions are left out.
func (s State) Persisted() []model.Conversation {
	if len(s.PendingDeletes) == 0 {
		return s.Conversations
	}
	out := make([]model.Conversation, 0, len(s.Conversations))
	for _, c := range s.Conversations {
		if !s.IsDeleting(c.ID) {
			out = append(out, c)
		}
	}
	return out
}

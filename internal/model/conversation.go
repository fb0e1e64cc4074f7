// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// DefaultTitle is used when a conversation is created without a title.
const DefaultTitle = "New Conversation"

// TitleMaxRunes bounds titles derived from the first user message.
const TitleMaxRunes = 50

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a titled, ordered log of messages plus metadata.
type Conversation struct {
	// Identity
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Messages, in insertion order
	Messages []Message `json:"messages"`

	Model    string `json:"model"`
	IsPinned bool   `json:"isPinned,omitempty"`
}

// NewConversation creates a conversation holding exactly one welcome message.
func NewConversation(title string, at time.Time) Conversation {
	if title == "" {
		title = DefaultTitle
	}
	return Conversation{
		ID:        NewConversationID(at),
		Title:     title,
		CreatedAt: at,
		UpdatedAt: at,
		Messages:  []Message{NewWelcomeMessage(at)},
	}
}

// ConversationPatch lists the fields UpdateConversation may overwrite.
// Nil fields are left untouched.
type ConversationPatch struct {
	Title    *string
	Model    *string
	IsPinned *bool
}

// Apply shallow-merges the patch into c and bumps UpdatedAt.
func (p ConversationPatch) Apply(c Conversation, at time.Time) Conversation {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Model != nil {
		c.Model = *p.Model
	}
	if p.IsPinned != nil {
		c.IsPinned = *p.IsPinned
	}
	c.UpdatedAt = at
	return c
}

// =============================================================================
// MESSAGE LOOKUP
// =============================================================================

// MessageIndex returns the position of the message with the given ID, or -1.
func (c Conversation) MessageIndex(id string) int {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// GetMessageByID returns a message by its ID.
func (c Conversation) GetMessageByID(id string) (Message, bool) {
	i := c.MessageIndex(id)
	if i < 0 {
		return Message{}, false
	}
	return c.Messages[i], true
}

// MessageCount returns the number of messages.
func (c Conversation) MessageCount() int {
	return len(c.Messages)
}

// GetLastUserMessage returns the most recent user message before index end
// (exclusive). Pass len(c.Messages) to search the whole log.
func (c Conversation) GetLastUserMessage(end int) (Message, bool) {
	if end > len(c.Messages) {
		end = len(c.Messages)
	}
	for i := end - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}

// Clone creates a deep copy of the conversation.
func (c Conversation) Clone() Conversation {
	msgs := make([]Message, len(c.Messages))
	for i, msg := range c.Messages {
		msgs[i] = msg.Clone()
	}
	c.Messages = msgs
	return c
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// DeriveTitle builds a conversation title from the first user message:
// the first TitleMaxRunes characters, with "..." appended when truncated.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= TitleMaxRunes {
		return content
	}
	return string(runes[:TitleMaxRunes]) + "..."
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// NewConversationID creates a conversation ID from a timestamp and a random suffix.
// It is collision resistant, not cryptographically unique.
func NewConversationID(at time.Time) string {
	bytes := make([]byte, 4)
	rand.Read(bytes)
	return "conv_" + strconv.FormatInt(at.UnixMilli(), 36) + "_" + hex.EncodeToString(bytes)
}

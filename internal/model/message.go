// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// MessageType classifies how a message's content should be presented.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeAnalysis MessageType = "analysis"
	TypeChart    MessageType = "chart"
	TypeCode     MessageType = "code"
	TypeError    MessageType = "error"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypeAnalysis, TypeChart, TypeCode, TypeError:
		return true
	}
	return false
}

// Metadata carries generation statistics for assistant messages.
type Metadata struct {
	Model          string        `json:"model,omitempty"`
	Tokens         int           `json:"tokens,omitempty"`
	ProcessingTime time.Duration `json:"processingTime,omitempty"`
}

// Message represents a single turn in a conversation.
//
// A message with IsLoading set has empty Content. It is the placeholder that
// a pending generation replaces in place, keeping the same ID.
type Message struct {
	ID            string      `json:"id"`
	Content       string      `json:"content"`
	Role          Role        `json:"role"`
	Type          MessageType `json:"type"`
	Timestamp     time.Time   `json:"timestamp"`
	IsLoading     bool        `json:"isLoading,omitempty"`
	CanRegenerate bool        `json:"canRegenerate,omitempty"`
	Metadata      *Metadata   `json:"metadata,omitempty"`
}

// NewUserMessage creates a text message authored by the user.
func NewUserMessage(content string, at time.Time) Message {
	return Message{
		ID:        NewMessageID(),
		Content:   content,
		Role:      RoleUser,
		Type:      TypeText,
		Timestamp: at,
	}
}

// NewPlaceholder creates a loading assistant message awaiting generation.
func NewPlaceholder(at time.Time) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      RoleAssistant,
		Type:      TypeText,
		Timestamp: at,
		IsLoading: true,
	}
}

// NewWelcomeMessage creates the synthetic greeting every conversation starts with.
func NewWelcomeMessage(at time.Time) Message {
	return Message{
		ID:        NewMessageID(),
		Content:   WelcomeContent,
		Role:      RoleAssistant,
		Type:      TypeText,
		Timestamp: at,
	}
}

// WelcomeContent is the body of the synthetic welcome message.
const WelcomeContent = "Hello! I'm your AI assistant. I can help you analyze your portfolio, " +
	"explain market movements, review smart contracts, or answer questions about tokens. " +
	"What would you like to explore?"

// NewMessageID returns a fresh message identifier.
func NewMessageID() string {
	return "msg_" + uuid.NewString()
}

// Clone returns a copy of the message that shares no pointers with m.
func (m Message) Clone() Message {
	if m.Metadata != nil {
		md := *m.Metadata
		m.Metadata = &md
	}
	return m
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// EstimateTokens estimates the token count of the message (~4 chars per token).
func (m Message) EstimateTokens() int {
	return EstimateTokens(m.Content)
}

// EstimateTokens estimates the token count of a piece of text.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/jeranaias/chatstore/internal/model"
)

// TimeLayout is the persisted timestamp form: UTC with fixed millisecond
// precision, so lexical order matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// =============================================================================
// STORED TYPES
// =============================================================================

// StoredConversation represents a persisted conversation.
type StoredConversation struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Messages  []StoredMessage `json:"messages"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
	Model     string          `json:"model"`
	IsPinned  bool            `json:"isPinned,omitempty"`
}

// StoredMessage represents a persisted message.
type StoredMessage struct {
	ID            string          `json:"id"`
	Content       string          `json:"content"`
	Role          string          `json:"role"`
	Type          string          `json:"type"`
	Timestamp     string          `json:"timestamp"`
	IsLoading     bool            `json:"isLoading,omitempty"`
	CanRegenerate bool            `json:"canRegenerate,omitempty"`
	Metadata      *StoredMetadata `json:"metadata,omitempty"`
}

// StoredMetadata represents persisted generation statistics.
type StoredMetadata struct {
	Model            string `json:"model,omitempty"`
	Tokens           int    `json:"tokens,omitempty"`
	ProcessingTimeMs int64  `json:"processingTime,omitempty"`
}

// =============================================================================
// CONVERSION
// =============================================================================

// FormatTime renders t in the persisted timestamp form.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a persisted timestamp. Any RFC 3339 value is accepted.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// FromModel converts a conversation to its persisted form.
func FromModel(conv model.Conversation) StoredConversation {
	msgs := make([]StoredMessage, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		stored := StoredMessage{
			ID:            msg.ID,
			Content:       msg.Content,
			Role:          string(msg.Role),
			Type:          string(msg.Type),
			Timestamp:     FormatTime(msg.Timestamp),
			IsLoading:     msg.IsLoading,
			CanRegenerate: msg.CanRegenerate,
		}
		if msg.Metadata != nil {
			stored.Metadata = &StoredMetadata{
				Model:            msg.Metadata.Model,
				Tokens:           msg.Metadata.Tokens,
				ProcessingTimeMs: msg.Metadata.ProcessingTime.Milliseconds(),
			}
		}
		msgs = append(msgs, stored)
	}

	return StoredConversation{
		ID:        conv.ID,
		Title:     conv.Title,
		Messages:  msgs,
		CreatedAt: FormatTime(conv.CreatedAt),
		UpdatedAt: FormatTime(conv.UpdatedAt),
		Model:     conv.Model,
		IsPinned:  conv.IsPinned,
	}
}

// ToModel converts a persisted conversation back, restoring timestamps.
func (c StoredConversation) ToModel() (model.Conversation, error) {
	createdAt, err := ParseTime(c.CreatedAt)
	if err != nil {
		return model.Conversation{}, errors.Wrapf(err, "conversation %s: createdAt", c.ID)
	}
	updatedAt, err := ParseTime(c.UpdatedAt)
	if err != nil {
		return model.Conversation{}, errors.Wrapf(err, "conversation %s: updatedAt", c.ID)
	}

	msgs := make([]model.Message, 0, len(c.Messages))
	for _, stored := range c.Messages {
		msg, err := stored.toModel()
		if err != nil {
			return model.Conversation{}, errors.Wrapf(err, "conversation %s", c.ID)
		}
		msgs = append(msgs, msg)
	}

	return model.Conversation{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		Messages:  msgs,
		Model:     c.Model,
		IsPinned:  c.IsPinned,
	}, nil
}

func (m StoredMessage) toModel() (model.Message, error) {
	role := model.Role(m.Role)
	if !role.Valid() {
		return model.Message{}, errors.Errorf("message %s: invalid role %q", m.ID, m.Role)
	}
	typ := model.MessageType(m.Type)
	if typ == "" {
		typ = model.TypeText
	}
	if !typ.Valid() {
		return model.Message{}, errors.Errorf("message %s: invalid type %q", m.ID, m.Type)
	}
	ts, err := ParseTime(m.Timestamp)
	if err != nil {
		return model.Message{}, errors.Wrapf(err, "message %s: timestamp", m.ID)
	}

	msg := model.Message{
		ID:            m.ID,
		Content:       m.Content,
		Role:          role,
		Type:          typ,
		Timestamp:     ts,
		IsLoading:     m.IsLoading,
		CanRegenerate: m.CanRegenerate,
	}
	if m.Metadata != nil {
		msg.Metadata = &model.Metadata{
			Model:          m.Metadata.Model,
			Tokens:         m.Metadata.Tokens,
			ProcessingTime: time.Duration(m.Metadata.ProcessingTimeMs) * time.Millisecond,
		}
	}
	return msg, nil
}

// =============================================================================
// ENCODING
// =============================================================================

// EncodeConversations serializes the full conversation list.
func EncodeConversations(convs []model.Conversation) ([]byte, error) {
	stored := make([]StoredConversation, 0, len(convs))
	for _, conv := range convs {
		stored = append(stored, FromModel(conv))
	}
	return json.Marshal(stored)
}

// DecodeConversations parses a list written by EncodeConversations.
func DecodeConversations(data []byte) ([]model.Conversation, error) {
	var stored []StoredConversation
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, errors.Wrap(err, "decode conversations")
	}

	convs := make([]model.Conversation, 0, len(stored))
	for _, s := range stored {
		conv, err := s.ToModel()
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

// EncodeSettings serializes the settings object.
func EncodeSettings(s model.Settings) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSettings parses settings, starting from defaults so that fields
// missing from older payloads keep their default values.
func DecodeSettings(data []byte) (model.Settings, error) {
	s := model.DefaultSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		return model.Settings{}, errors.Wrap(err, "decode settings")
	}
	return s, nil
}

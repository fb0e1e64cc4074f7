// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatstore/internal/model"
)

func TestCodec_ConversationsRestoreTimes(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 30, 45, 123_000_000, time.FixedZone("X", 3600))
	conv := model.NewConversation("Portfolio review", at)
	reply := model.NewPlaceholder(at.Add(time.Second))
	reply.IsLoading = false
	reply.Content = "done"
	reply.Type = model.TypeAnalysis
	reply.CanRegenerate = true
	reply.Metadata = &model.Metadata{Model: "gpt-4", Tokens: 12, ProcessingTime: 1500 * time.Millisecond}
	conv.Messages = append(conv.Messages, model.NewUserMessage("hi", at), reply)
	conv.IsPinned = true

	data, err := EncodeConversations([]model.Conversation{conv})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"createdAt":"2025-03-01T11:30:45.123Z"`)

	got, err := DecodeConversations(data)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.True(t, got[0].CreatedAt.Equal(conv.CreatedAt))
	assert.Equal(t, conv.ID, got[0].ID)
	assert.True(t, got[0].IsPinned)
	require.Len(t, got[0].Messages, 3)
	assert.Equal(t, model.TypeAnalysis, got[0].Messages[2].Type)
	assert.Equal(t, 1500*time.Millisecond, got[0].Messages[2].Metadata.ProcessingTime)
}

func TestCodec_TimestampsSortLexically(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{
		base.Add(100 * time.Millisecond),
		base.Add(120 * time.Millisecond),
		base.Add(10 * time.Hour),
		base,
	}
	var strs []string
	for _, tm := range times {
		strs = append(strs, FormatTime(tm))
	}
	sort.Strings(strs)
	for i := 1; i < len(strs); i++ {
		a, _ := ParseTime(strs[i-1])
		b, _ := ParseTime(strs[i])
		assert.False(t, b.Before(a), "%s sorted before %s", strs[i-1], strs[i])
	}
}

func TestCodec_DecodeErrors(t *testing.T) {
	tests := map[string]string{
		"not json":     `{{{`,
		"bad role":     `[{"id":"c","createdAt":"2025-01-01T00:00:00.000Z","updatedAt":"2025-01-01T00:00:00.000Z","messages":[{"id":"m","role":"system","timestamp":"2025-01-01T00:00:00.000Z"}]}]`,
		"bad time":     `[{"id":"c","createdAt":"yesterday","updatedAt":"2025-01-01T00:00:00.000Z","messages":[]}]`,
		"bad msg type": `[{"id":"c","createdAt":"2025-01-01T00:00:00.000Z","updatedAt":"2025-01-01T00:00:00.000Z","messages":[{"id":"m","role":"user","type":"video","timestamp":"2025-01-01T00:00:00.000Z"}]}]`,
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeConversations([]byte(payload))
			assert.Error(t, err)
		})
	}
}

func TestCodec_MissingTypeDefaultsToText(t *testing.T) {
	payload := `[{"id":"c","title":"t","createdAt":"2025-01-01T00:00:00.000Z","updatedAt":"2025-01-01T00:00:00.000Z",
		"messages":[{"id":"m","role":"user","content":"x","timestamp":"2025-01-01T00:00:00Z"}]}]`
	got, err := DecodeConversations([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, model.TypeText, got[0].Messages[0].Type)
}

func TestCodec_SettingsKeepDefaultsForMissingFields(t *testing.T) {
	got, err := DecodeSettings([]byte(`{"model":"claude"}`))
	require.NoError(t, err)
	assert.Equal(t, "claude", got.Model)
	assert.Equal(t, model.DefaultSettings().FontFamily, got.FontFamily)

	data, err := EncodeSettings(got)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"model":"claude"`))

	_, err = DecodeSettings([]byte(`nope`))
	assert.Error(t, err)
}

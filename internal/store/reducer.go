// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"slices"

	"github.com/jeranaias/chatstore/internal/model"
)

// Apply returns the state that results from applying cmd to s.
// s is never modified. Commands referring to unknown ids are no-ops.
func Apply(s State, cmd Command) State {
	s = s.Clone()

	switch c := cmd.(type) {
	case Hydrate:
		s.Conversations = make([]model.Conversation, len(c.Conversations))
		for i, conv := range c.Conversations {
			s.Conversations[i] = conv.Clone()
		}
		s.Settings = c.Settings
		s.CurrentConversationID = ""
		if len(s.Conversations) > 0 {
			s.CurrentConversationID = s.Conversations[0].ID
		}
		s.PendingDeletes = nil
		s.DeletingConversationID = ""

	case AddConversation:
		s.Conversations = slices.Insert(s.Conversations, 0, c.Conversation.Clone())
		s.CurrentConversationID = c.Conversation.ID

	case SelectConversation:
		if s.Index(c.ID) >= 0 {
			s.CurrentConversationID = c.ID
		} else {
			s.CurrentConversationID = ""
		}

	case UpdateConversation:
		if i := s.Index(c.ID); i >= 0 {
			s.Conversations[i] = c.Patch.Apply(s.Conversations[i], c.At)
		}

	case BeginDelete:
		if s.Index(c.ID) >= 0 && !s.IsDeleting(c.ID) {
			s.PendingDeletes = append(s.PendingDeletes, c.ID)
			s.DeletingConversationID = c.ID
		}

	case CommitDelete:
		s = clearPending(s, c.ID)
		if i := s.Index(c.ID); i >= 0 {
			s.Conversations = slices.Delete(s.Conversations, i, i+1)
		}
		if s.CurrentConversationID == c.ID {
			s.CurrentConversationID = ""
			if len(s.Conversations) > 0 {
				s.CurrentConversationID = s.Conversations[0].ID
			}
		}

	case AbortDelete:
		s = clearPending(s, c.ID)
		s.Error = c.Message

	case AppendExchange:
		i := s.Index(c.ConversationID)
		if i < 0 {
			break
		}
		conv := &s.Conversations[i]
		if len(conv.Messages) == 1 {
			conv.Title = model.DeriveTitle(c.User.Content)
		}
		conv.Messages = append(conv.Messages, c.User.Clone(), c.Placeholder.Clone())
		conv.UpdatedAt = c.At

	case CompleteMessage:
		conv, j := locateMessage(&s, c.ConversationID, c.Message.ID)
		if conv == nil || !conv.Messages[j].IsLoading {
			break
		}
		conv.Messages[j] = c.Message.Clone()
		conv.UpdatedAt = c.At

	case ResetMessage:
		conv, j := locateMessage(&s, c.ConversationID, c.MessageID)
		if conv == nil {
			break
		}
		msg := &conv.Messages[j]
		msg.Content = ""
		msg.Type = model.TypeText
		msg.IsLoading = true
		msg.CanRegenerate = false
		msg.Metadata = nil
		conv.UpdatedAt = c.At

	case DeleteMessage:
		// The sole message is kept so conversations never become empty,
		// even though a plain message delete would allow it.
		conv, j := locateMessage(&s, c.ConversationID, c.MessageID)
		if conv == nil || len(conv.Messages) <= 1 {
			break
		}
		conv.Messages = slices.Delete(conv.Messages, j, j+1)
		conv.UpdatedAt = c.At

	case UpdateSettings:
		s.Settings = c.Patch.Apply(s.Settings)

	case UpdateUIState:
		s.UIState = c.Patch.Apply(s.UIState)

	case ClearError:
		s.Error = ""
	}

	return s
}

func clearPending(s State, id string) State {
	s.PendingDeletes = slices.DeleteFunc(s.PendingDeletes, func(p string) bool { return p == id })
	s.DeletingConversationID = ""
	if n := len(s.PendingDeletes); n > 0 {
		s.DeletingConversationID = s.PendingDeletes[n-1]
	}
	return s
}

// locateMessage returns a pointer into s for the conversation holding
// messageID, plus the message index. conv is nil when either is missing.
func locateMessage(s *State, convID, messageID string) (*model.Conversation, int) {
	i := s.Index(convID)
	if i < 0 {
		return nil, -1
	}
	conv := &s.Conversations[i]
	j := conv.MessageIndex(messageID)
	if j < 0 {
		return nil, -1
	}
	return conv, j
}

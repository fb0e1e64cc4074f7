// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"time"

	"github.com/jeranaias/chatstore/internal/model"
)

// Command is a state transition understood by Apply. The set is closed.
type Command interface {
	commandName() string
}

// Hydrate replaces conversations and settings with loaded values and
// selects the first conversation.
type Hydrate struct {
	Conversations []model.Conversation
	Settings      model.Settings
}

// AddConversation inserts a conversation at the head of the list and
// selects it. Used for both creation and import.
type AddConversation struct {
	Conversation model.Conversation
}

// SelectConversation activates id, or deselects when id is unknown.
type SelectConversation struct {
	ID string
}

// UpdateConversation shallow-merges Patch into conversation ID.
type UpdateConversation struct {
	ID    string
	Patch model.ConversationPatch
	At    time.Time
}

// BeginDelete marks conversation ID as being deleted.
type BeginDelete struct {
	ID string
}

// CommitDelete removes conversation ID and fixes the selection.
type CommitDelete struct {
	ID string
}

// AbortDelete clears the pending marker of ID and records Message.
type AbortDelete struct {
	ID      string
	Message string
}

// AppendExchange appends a user message and its loading placeholder,
// deriving the title when the conversation held only its welcome message.
type AppendExchange struct {
	ConversationID string
	User           model.Message
	Placeholder    model.Message
	At             time.Time
}

// CompleteMessage replaces a loading message in place. It is dropped when
// the target is gone or no longer loading.
type CompleteMessage struct {
	ConversationID string
	Message        model.Message
	At             time.Time
}

// ResetMessage puts a message back into the loading state.
type ResetMessage struct {
	ConversationID string
	MessageID      string
	At             time.Time
}

// DeleteMessage removes a message unless it is the conversation's last one.
type DeleteMessage struct {
	ConversationID string
	MessageID      string
	At             time.Time
}

// UpdateSettings shallow-merges Patch into the settings.
type UpdateSettings struct {
	Patch model.SettingsPatch
}

// UpdateUIState shallow-merges Patch into the UI flags.
type UpdateUIState struct {
	Patch model.UIStatePatch
}

// ClearError resets State.Error.
type ClearError struct{}

func (Hydrate) commandName() string            { return "hydrate" }
func (AddConversation) commandName() string    { return "add_conversation" }
func (SelectConversation) commandName() string { return "select_conversation" }
func (UpdateConversation) commandName() string { return "update_conversation" }
func (BeginDelete) commandName() string        { return "begin_delete" }
func (CommitDelete) commandName() string       { return "commit_delete" }
func (AbortDelete) commandName() string        { return "abort_delete" }
func (AppendExchange) commandName() string     { return "append_exchange" }
func (CompleteMessage) commandName() string    { return "complete_message" }
func (ResetMessage) commandName() string       { return "reset_message" }
func (DeleteMessage) commandName() string      { return "delete_message" }
func (UpdateSettings) commandName() string     { return "update_settings" }
func (UpdateUIState) commandName() string      { return "update_ui_state" }
func (ClearError) commandName() string         { return "clear_error" }

// Name returns a stable identifier for cmd, used in logs and metrics.
func Name(cmd Command) string {
	return cmd.commandName()
}

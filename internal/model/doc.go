// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types held by the conversation store:
// conversations with their ordered message logs, the global chat settings,
// and the transient UI flags.
//
// # Key Types
//
//   - Conversation: Titled, ordered log of messages plus metadata
//   - Message: Single turn authored by the user or the assistant
//   - Settings: Model, generation and appearance preferences
//   - UIState: Sidebar, panel and search flags
//
// # Usage
//
// Create a new conversation (it always starts with a welcome message):
//
//	conv := model.NewConversation("", time.Now())
//	fmt.Println(conv.MessageCount()) // 1
//
// Values are plain data. Use Clone before handing a conversation to code
// that must not share its message slice.
package model

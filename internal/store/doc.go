// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store implements the conversation store.
//
// The store holds the conversation list, the active selection, global
// settings and UI flags. Every mutation is a Command applied by the pure
// transition function Apply; the Store type wraps it with locking,
// persistence to a storage.KV and the timers that model remote deletion and
// reply generation.
//
// # Key Types
//
//   - State: Immutable snapshot of everything the store holds
//   - Command: Tagged union of state transitions
//   - Store: Concurrency-safe owner of State
//   - ConversationError: Typed failures, comparable with errors.Is
//
// # Usage
//
//	st, err := store.New(ctx, store.Options{KV: kv, Logger: entry})
//	id := st.CreateConversation("")
//	st.SendMessage(ctx, "Hello", id)
//	st.Wait()
//
// # Asynchronous work
//
// Deletion blocks the caller for the simulated remote call. Generation runs
// on goroutines that are detached from the caller's cancellation and always
// run to completion; completions are dropped when their target message is
// gone or no longer loading.
package store

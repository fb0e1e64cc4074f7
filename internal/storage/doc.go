// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the durable key-value store behind the chat
// conversation store.
//
// The conversation store persists two independent values under fixed keys,
// KeyConversations and KeySettings. This package supplies the KV contract,
// several interchangeable backends, and the JSON codec for the persisted shape.
//
// # Key Types
//
//   - KV: Get/Set/Delete contract implemented by every backend
//   - MemoryKV: Process-local map, used by tests and --ephemeral runs
//   - FileKV: One JSON file per key, written atomically
//   - SQLiteKV: Single-table SQLite database (pure Go driver)
//   - RedisKV: Redis strings under a configurable key prefix
//   - StoredConversation: Serializable conversation with string timestamps
//
// # Usage
//
// Open the configured backend and read the conversation list:
//
//	kv, err := storage.Open(ctx, cfg.Storage)
//	data, err := kv.Get(ctx, storage.KeyConversations)
//	convs, err := storage.DecodeConversations(data)
//
// # Storage Location
//
// The file and SQLite backends default to ~/.chatstore/.
package storage

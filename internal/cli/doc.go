// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the chatstore command tree.
//
// One-shot commands (list, new, send, rm, export, ...) open the configured
// storage backend, apply a single store operation and exit; commands that
// start a generation wait for it to settle first. The chat command runs an
// interactive REPL over the same store.
//
// # Usage
//
//	chatstore new "Gas fees"
//	chatstore send "What are gas fees?"
//	chatstore export conv_xxx --format md --out ./exports
//	chatstore chat
package cli

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the chatstore packages.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe string truncation with ellipsis
//   - TruncateWidth, PadRight: display-width aware formatting for tables
//   - OneLine: collapse a message body into a single preview line
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
package util

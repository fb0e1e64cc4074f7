// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export provides conversation export and import.
//
// # Key Types
//
//   - Format: Export format enumeration (JSON, Markdown, plain text)
//   - Exporter: Per-format export interface
//   - Artifact: A named, MIME-typed export ready for download
//
// # Supported Formats
//
//   - json: Full structured dump in the persisted shape, re-importable
//   - md: Heading-per-speaker transcript
//   - txt: Timestamped flat transcript
//
// # Usage
//
//	art, err := export.Build(conv, export.FormatMarkdown)
//	path, err := export.WriteArtifact(dir, art)
//
// Import a JSON export:
//
//	conv, err := export.DecodeImport(data)
package export

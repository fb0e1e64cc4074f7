// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/jeranaias/chatstore/internal/model"
	"github.com/jeranaias/chatstore/internal/storage"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports conversations in the persisted shape so the output
// can be imported again.
type JSONExporter struct{}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

// Export converts a conversation to indented JSON.
func (e *JSONExporter) Export(conv model.Conversation) ([]byte, error) {
	return json.MarshalIndent(storage.FromModel(conv), "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}

// =============================================================================
// IMPORT
// =============================================================================

// ErrNoMessages is returned when an import payload has an empty message log.
var ErrNoMessages = errors.New("conversation has no messages")

// DecodeImport parses a JSON export. Identifiers are kept as-is and
// placeholders exported mid-generation still have IsLoading set; callers
// that insert the result into a store assign fresh ids and settle them.
func DecodeImport(data []byte) (model.Conversation, error) {
	var stored storage.StoredConversation
	if err := json.Unmarshal(data, &stored); err != nil {
		return model.Conversation{}, errors.Wrap(err, "decode conversation export")
	}
	if len(stored.Messages) == 0 {
		return model.Conversation{}, ErrNoMessages
	}
	return stored.ToModel()
}

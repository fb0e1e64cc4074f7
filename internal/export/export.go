// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jeranaias/chatstore/internal/model"
	"github.com/jeranaias/chatstore/internal/util"
)

// =============================================================================
// FORMATS
// =============================================================================

// Format selects an exporter.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
)

// ParseFormat accepts the format names and a few common aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	}
	return "", errors.Errorf("unknown export format %q (want json, md or txt)", s)
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export converts a conversation to the target format and returns the content.
	Export(conv model.Conversation) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md", ".txt").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// ForFormat returns the exporter for f.
func ForFormat(f Format) (Exporter, error) {
	switch f {
	case FormatJSON:
		return NewJSONExporter(), nil
	case FormatMarkdown:
		return NewMarkdownExporter(), nil
	case FormatText:
		return NewTextExporter(), nil
	}
	return nil, errors.Errorf("unknown export format %q", f)
}

// =============================================================================
// ARTIFACTS
// =============================================================================

// Artifact is a named, MIME-typed export.
type Artifact struct {
	Filename string
	MimeType string
	Content  []byte
}

// Build exports conv in format f.
func Build(conv model.Conversation, f Format) (Artifact, error) {
	exporter, err := ForFormat(f)
	if err != nil {
		return Artifact{}, err
	}
	content, err := exporter.Export(conv)
	if err != nil {
		return Artifact{}, errors.Wrap(err, "export failed")
	}
	return Artifact{
		Filename: Filename(conv.Title, exporter.FileExtension()),
		MimeType: exporter.MimeType(),
		Content:  content,
	}, nil
}

// WriteArtifact saves art under dir and returns the written path.
func WriteArtifact(dir string, art Artifact) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "create output directory")
	}
	path := filepath.Join(dir, art.Filename)
	if err := util.AtomicWriteFile(path, art.Content, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Filename derives an export filename: the lowercased title with every
// character outside [a-z0-9] replaced by an underscore, plus ext.
func Filename(title, ext string) string {
	lower := strings.ToLower(title)

	var sb strings.Builder
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}

	name := sb.String()
	if name == "" {
		name = "conversation"
	}
	return name + ext
}

// formatDuration formats a duration to a human-readable string.
func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000.0
	if seconds < 60 {
		return fmt.Sprintf("%.2fs", seconds)
	}
	minutes := int(seconds / 60)
	remainingSeconds := int(seconds) % 60
	return fmt.Sprintf("%dm %ds", minutes, remainingSeconds)
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

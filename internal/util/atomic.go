// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// RELIABILITY: Atomic write with fsync prevents data loss on crash
//
// AtomicWriteFile writes data to path by writing a temporary file in the same
// directory, syncing it, and renaming it over the target. Readers observe
// either the old content or the new content, never a partial write.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "resolve path")
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "create parent directory")
	}

	// Same directory keeps the rename on one filesystem
	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tempPath := f.Name()

	success := false
	defer func() {
		if !success {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return errors.Wrap(err, "write data")
	}
	if err := f.Sync(); err != nil {
		return errors.Wrap(err, "sync data to disk")
	}
	// Close before rename - required on Windows
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		return errors.Wrap(err, "set file permissions")
	}
	if err := os.Rename(tempPath, absPath); err != nil {
		return errors.Wrap(err, "rename temp file")
	}

	success = true
	return nil
}

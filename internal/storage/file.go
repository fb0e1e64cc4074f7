// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/jeranaias/chatstore/internal/util"
)

// FileKV stores each key as <BaseDir>/<key>.json.
type FileKV struct {
	// BaseDir is the directory holding one file per key
	BaseDir string
}

// NewFileKV creates a file-backed store rooted at baseDir.
func NewFileKV(baseDir string) (*FileKV, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, errors.Wrapf(err, "create storage directory %s", baseDir)
	}
	return &FileKV{BaseDir: baseDir}, nil
}

// Get implements KV.
func (s *FileKV) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.filePath(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, errors.Wrapf(err, "read %s", key)
	}
	return data, nil
}

// Set implements KV.
func (s *FileKV) Set(_ context.Context, key string, value []byte) error {
	path, err := s.filePath(key)
	if err != nil {
		return err
	}
	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(path, value, 0600); err != nil {
		return errors.Wrapf(err, "write %s", key)
	}
	return nil
}

// Delete implements KV.
func (s *FileKV) Delete(_ context.Context, key string) error {
	path, err := s.filePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "delete %s", key)
	}
	return nil
}

// Close implements KV.
func (s *FileKV) Close() error {
	return nil
}

// filePath returns the file path for a key.
func (s *FileKV) filePath(key string) (string, error) {
	if !validKey(key) {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.BaseDir, key+".json"), nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/jeranaias/chatstore/internal/config"
)

// Logical keys of the persisted values.
const (
	KeyConversations = "chat-conversations"
	KeySettings      = "chat-settings"
)

// =============================================================================
// KV CONTRACT
// =============================================================================

// KV is a durable key-value store. Implementations must be safe for
// concurrent use.
type KV interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrKeyNotFound is returned by Get when no value is stored under the key.
// Use errors.Is(err, ErrKeyNotFound) to check for this error.
var ErrKeyNotFound = &StorageError{Message: "key not found"}

// ErrInvalidKey is returned for keys a backend cannot address safely.
var ErrInvalidKey = &StorageError{Message: "invalid key"}

// StorageError represents a storage-related error.
// It implements the error interface and can be compared using errors.Is.
type StorageError struct {
	Message string
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing storage errors.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// validKey accepts the characters used by the fixed logical key names.
func validKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// =============================================================================
// BACKEND SELECTION
// =============================================================================

// Open creates the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (KV, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendMemory:
		return NewMemoryKV(), nil
	case config.BackendFile, "":
		dir, err := resolveDir(cfg.Path, "data")
		if err != nil {
			return nil, err
		}
		return NewFileKV(dir)
	case config.BackendSQLite:
		path := cfg.Path
		if path == "" {
			dir, err := resolveDir("", "")
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "chatstore.db")
		}
		return NewSQLiteKV(ctx, path)
	case config.BackendRedis:
		return NewRedisKV(ctx, RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
		})
	default:
		return nil, errors.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// resolveDir returns path, or a subdirectory of the config directory when
// path is empty.
func resolveDir(path, sub string) (string, error) {
	if path != "" {
		return path, nil
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	if sub != "" {
		dir = filepath.Join(dir, sub)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the logrus logger shared by chatstore components.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/chatstore/internal/config"
)

// TimestampFormat adds millisecond precision to log timestamps.
const TimestampFormat = "2006-01-02T15:04:05.999Z07:00"

// Setup returns a logger configured from cfg. The returned closer releases
// the log file when Output is "file" and is a no-op otherwise.
func Setup(cfg config.LogConfig) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot parse log level")
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: TimestampFormat})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: TimestampFormat,
			FullTimestamp:   true,
		})
	}

	var closer io.Closer = nopCloser{}
	switch cfg.Output {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "file":
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0700); err != nil {
			return nil, nil, errors.Wrap(err, "create log directory")
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "open log file %s", cfg.FilePath)
		}
		logger.SetOutput(f)
		closer = f
	default:
		logger.SetOutput(os.Stderr)
	}

	return logger, closer, nil
}

// Discard returns a logger that drops everything. Handy for tests.
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

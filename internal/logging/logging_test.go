// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatstore/internal/config"
)

func TestSetupLevelAndFormat(t *testing.T) {
	logger, closer, err := Setup(config.LogConfig{Level: "debug", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestSetupBadLevel(t *testing.T) {
	_, _, err := Setup(config.LogConfig{Level: "loud", Format: "text", Output: "stderr"})
	assert.Error(t, err)
}

func TestSetupFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chatstore.log")
	logger, closer, err := Setup(config.LogConfig{Level: "info", Format: "json", Output: "file", FilePath: path})
	require.NoError(t, err)

	logger.WithField("conversation", "conv_1").Info("created")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(data, &line))
	assert.Equal(t, "created", line["msg"])
	assert.Equal(t, "conv_1", line["conversation"])
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Exit codes and error classification for chatstore commands.
//
// Commands always return errors; Execute decides how to display them and
// which exit code to use.

package cli

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/jeranaias/chatstore/internal/config"
	"github.com/jeranaias/chatstore/internal/store"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports invalid arguments.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// errMessageNotFound is wrapped by errors naming an unknown message id.
var errMessageNotFound = errors.New("message not found")

func messageNotFound(id string) error {
	return errors.WithMessage(errMessageNotFound, id)
}

func usageErrorf(format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var verrs config.ValidateErrors
	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &verrs):
		return ExitConfigError
	case errors.Is(err, store.ErrNotFound), errors.Is(err, errMessageNotFound):
		return ExitNotFoundError
	default:
		return ExitGeneralError
	}
}

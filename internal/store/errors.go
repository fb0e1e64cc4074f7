// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "fmt"

// ErrorKind classifies store failures.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "not_found"
	KindLastConversation ErrorKind = "last_conversation"
	KindDeleteInProgress ErrorKind = "delete_in_progress"
	KindDeleteFailed     ErrorKind = "delete_failed"
	KindGenerationFailed ErrorKind = "generation_failed"
	KindImport           ErrorKind = "import"
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrNotFound         = &ConversationError{Kind: KindNotFound}
	ErrLastConversation = &ConversationError{Kind: KindLastConversation}
	ErrDeleteInProgress = &ConversationError{Kind: KindDeleteInProgress}
	ErrDeleteFailed     = &ConversationError{Kind: KindDeleteFailed}
	ErrGenerationFailed = &ConversationError{Kind: KindGenerationFailed}
	ErrImport           = &ConversationError{Kind: KindImport}
)

// DeleteFailedMessage is recorded in State.Error when a deletion is rolled back.
const DeleteFailedMessage = "Failed to delete conversation. Please try again."

// GenerationFailedContent replaces a placeholder whose generation failed.
const GenerationFailedContent = "Sorry, I couldn't generate a response. Please try again."

// ConversationError represents a conversation-related error.
// It implements the error interface and can be compared using errors.Is.
type ConversationError struct {
	Kind ErrorKind
	// ID is the conversation or message the failure refers to, if any.
	ID string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	var msg string
	switch e.Kind {
	case KindNotFound:
		msg = fmt.Sprintf("conversation %q not found", e.ID)
	case KindLastConversation:
		msg = "cannot delete the last remaining conversation"
	case KindDeleteInProgress:
		msg = fmt.Sprintf("conversation %q is already being deleted", e.ID)
	case KindDeleteFailed:
		msg = fmt.Sprintf("failed to delete conversation %q", e.ID)
	case KindGenerationFailed:
		msg = fmt.Sprintf("generation failed for message %q", e.ID)
	case KindImport:
		msg = "invalid conversation import"
	default:
		msg = string(e.Kind)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ConversationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func notFound(id string) error {
	return &ConversationError{Kind: KindNotFound, ID: id}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/jeranaias/chatstore/internal/model"
	"github.com/jeranaias/chatstore/internal/storage"
)

// InterruptedContent replaces placeholders found loading at startup or in an import: the
// generation that owned them did not survive the previous process.
const InterruptedContent = "This response was interrupted. Regenerate to try again."

// =============================================================================
// HYDRATION
// =============================================================================

// hydrate loads the persisted conversations and settings. Each key falls
// back to its default independently when absent or unreadable.
func (s *Store) hydrate(ctx context.Context, defaults model.Settings) Hydrate {
	settings := defaults
	switch data, err := s.kv.Get(ctx, storage.KeySettings); {
	case errors.Is(err, storage.ErrKeyNotFound):
	case err != nil:
		s.log.WithError(err).Warn("could not load settings, using defaults")
	default:
		loaded, derr := storage.DecodeSettings(data)
		if derr != nil {
			s.log.WithError(derr).Warn("stored settings are unreadable, using defaults")
			break
		}
		settings = loaded
	}

	var convs []model.Conversation
	switch data, err := s.kv.Get(ctx, storage.KeyConversations); {
	case errors.Is(err, storage.ErrKeyNotFound):
	case err != nil:
		s.log.WithError(err).Warn("could not load conversations, starting fresh")
	default:
		loaded, derr := storage.DecodeConversations(data)
		if derr != nil {
			s.log.WithError(derr).Warn("stored conversations are unreadable, starting fresh")
			break
		}
		convs = loaded
	}

	now := s.now()
	for i := range convs {
		convs[i] = repair(convs[i], now)
	}
	if len(convs) == 0 {
		conv := model.NewConversation("", now)
		conv.Model = settings.Model
		convs = []model.Conversation{conv}
	}

	return Hydrate{Conversations: convs, Settings: settings}
}

// repair restores the invariants a persisted or imported conversation may
// have lost: at least one message, and no message left loading.
func repair(conv model.Conversation, now time.Time) model.Conversation {
	if len(conv.Messages) == 0 {
		conv.Messages = []model.Message{model.NewWelcomeMessage(now)}
	}
	for i := range conv.Messages {
		msg := &conv.Messages[i]
		if msg.IsLoading {
			msg.IsLoading = false
			msg.CanRegenerate = true
			msg.Type = model.TypeError
			msg.Content = InterruptedContent
		}
	}
	return conv
}

// =============================================================================
// WRITES
// =============================================================================

// persistConversations writes the conversation list, leaving out pending
// deletions. Failures are logged and swallowed. Callers must hold s.mu.
func (s *Store) persistConversations() {
	s.writes++

	data, err := storage.EncodeConversations(s.state.Persisted())
	if err == nil {
		err = s.set(storage.KeyConversations, data)
	}
	if err != nil {
		s.persistFailed(storage.KeyConversations, err)
	}
}

// persistSettings writes the settings. Callers must hold s.mu.
func (s *Store) persistSettings() {
	data, err := storage.EncodeSettings(s.state.Settings)
	if err == nil {
		err = s.set(storage.KeySettings, data)
	}
	if err != nil {
		s.persistFailed(storage.KeySettings, err)
	}
}

func (s *Store) set(key string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return s.kv.Set(ctx, key, data)
}

func (s *Store) persistFailed(key string, err error) {
	s.metrics.PersistFailure(key)
	log := s.log.WithError(err).WithField("key", key)
	log.Debug("persist failed")
	s.warnRate.Do(func() {
		log.Warn("could not persist to storage; changes are kept in memory")
	})
}

// readSnapshot returns the current durable conversation list. Callers
// must hold s.mu.
func (s *Store) readSnapshot() ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	data, err := s.kv.Get(ctx, storage.KeyConversations)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			s.log.WithError(err).Debug("could not snapshot conversations before delete")
		}
		return nil, false
	}
	return data, true
}

// restoreSnapshot puts back the durable value read by readSnapshot. When
// there was none, the list is rewritten from memory instead. Callers must
// hold s.mu.
func (s *Store) restoreSnapshot(data []byte, ok bool) {
	if !ok {
		s.persistConversations()
		return
	}
	s.writes++
	if err := s.set(storage.KeyConversations, data); err != nil {
		s.persistFailed(storage.KeyConversations, err)
	}
}

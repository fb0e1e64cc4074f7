// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jeranaias/chatstore/internal/config"
	"github.com/jeranaias/chatstore/internal/export"
	"github.com/jeranaias/chatstore/internal/generate"
	"github.com/jeranaias/chatstore/internal/metrics"
	"github.com/jeranaias/chatstore/internal/model"
	"github.com/jeranaias/chatstore/internal/storage"
)

// persistTimeout bounds a single durable write.
const persistTimeout = 5 * time.Second

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Store. Only KV is required.
type Options struct {
	// KV is the durable key-value collaborator.
	KV storage.KV

	// Logger defaults to the logrus standard logger.
	Logger *logrus.Entry

	// Metrics may be nil.
	Metrics *metrics.Metrics

	// Generator defaults to generate.Stub.
	Generator generate.Generator

	// Remote defaults to a SimulatedRemote with Timing's delete latency.
	Remote Remote

	// Timing defaults to config.Default().Timing when zero.
	Timing config.TimingConfig

	// DefaultSettings are used when no settings are persisted.
	// Zero means model.DefaultSettings().
	DefaultSettings *model.Settings

	// Now defaults to time.Now.
	Now func() time.Time
}

// =============================================================================
// STORE
// =============================================================================

// Store owns the conversation state. All methods are safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	state State

	kv      storage.KV
	log     *logrus.Entry
	metrics *metrics.Metrics
	gen     generate.Generator
	remote  Remote
	timing  config.TimingConfig
	now     func() time.Time

	// writes counts conversation-list writes, so a rollback can tell
	// whether its snapshot is still the latest durable value.
	writes   uint64
	warnRate rate.Sometimes

	wg sync.WaitGroup
}

// New creates a store and hydrates it from opts.KV.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.KV == nil {
		return nil, errors.New("store: KV is required")
	}

	s := &Store{
		kv:       opts.KV,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		gen:      opts.Generator,
		remote:   opts.Remote,
		timing:   opts.Timing,
		now:      opts.Now,
		warnRate: rate.Sometimes{First: 3, Interval: 30 * time.Second},
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	s.log = s.log.WithField("component", "store")
	if s.gen == nil {
		s.gen = generate.NewStub()
	}
	if s.timing == (config.TimingConfig{}) {
		s.timing = config.Default().Timing
	}
	if s.remote == nil {
		s.remote = SimulatedRemote{Latency: s.timing.DeleteLatency()}
	}
	if s.now == nil {
		s.now = time.Now
	}

	defaults := model.DefaultSettings()
	if opts.DefaultSettings != nil {
		defaults = *opts.DefaultSettings
	}

	s.state = State{Settings: defaults, UIState: model.DefaultUIState()}
	s.state = Apply(s.state, s.hydrate(ctx, defaults))
	s.metrics.Conversations(len(s.state.Conversations))

	s.log.WithFields(logrus.Fields{
		"conversations": len(s.state.Conversations),
		"current":       s.state.CurrentConversationID,
	}).Debug("store hydrated")

	return s, nil
}

// dispatch applies cmd. Callers must hold s.mu.
func (s *Store) dispatch(cmd Command) {
	s.state = Apply(s.state, cmd)
	s.metrics.Conversations(len(s.state.Conversations))
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// CreateConversation inserts a new conversation at the head of the list,
// selects it and returns its id. A blank title becomes the default title.
func (s *Store) CreateConversation(title string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := model.NewConversation(strings.TrimSpace(title), s.now())
	conv.Model = s.state.Settings.Model

	s.dispatch(AddConversation{Conversation: conv})
	s.persistConversations()
	s.metrics.Op("create")
	s.log.WithField("conversation", conv.ID).Debug("conversation created")
	return conv.ID
}

// SelectConversation activates id. An unknown id clears the selection.
func (s *Store) SelectConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dispatch(SelectConversation{ID: id})
	s.metrics.Op("select")
}

// UpdateConversation shallow-merges patch into conversation id and bumps
// its UpdatedAt. Unknown ids are ignored.
func (s *Store) UpdateConversation(id string, patch model.ConversationPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Index(id) < 0 {
		return
	}
	s.dispatch(UpdateConversation{ID: id, Patch: patch, At: s.now()})
	s.persistConversations()
	s.metrics.Op("update")
}

// Deleting reports whether a deletion of id is in flight.
func (s *Store) Deleting(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsDeleting(id)
}

// DeleteConversation removes conversation id. It blocks for the remote
// deletion and returns its outcome.
//
// The durable list is written without the conversation before the remote
// call. If the remote call fails, the previous durable value is restored,
// State.Error is set and a KindDeleteFailed error wrapping the cause is
// returned; in-memory state is left as it was before the call.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.state.Index(id) < 0 {
		s.mu.Unlock()
		return notFound(id)
	}
	if s.state.IsDeleting(id) {
		s.mu.Unlock()
		return &ConversationError{Kind: KindDeleteInProgress, ID: id}
	}
	if len(s.state.Conversations)-len(s.state.PendingDeletes) <= 1 {
		s.mu.Unlock()
		return &ConversationError{Kind: KindLastConversation, ID: id}
	}

	snapshot, hadSnapshot := s.readSnapshot()
	s.dispatch(BeginDelete{ID: id})
	s.persistConversations()
	optimistic := s.writes
	s.mu.Unlock()

	log := s.log.WithField("conversation", id)
	log.Debug("deleting conversation")

	err := s.remote.DeleteConversation(context.WithoutCancel(ctx), id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.dispatch(AbortDelete{ID: id, Message: DeleteFailedMessage})
		if s.writes == optimistic {
			s.restoreSnapshot(snapshot, hadSnapshot)
		} else {
			s.persistConversations()
		}
		s.metrics.Rollback()
		s.metrics.Op("delete_failed")
		log.WithError(err).Warn("conversation deletion rolled back")
		return &ConversationError{Kind: KindDeleteFailed, ID: id, Err: err}
	}

	s.dispatch(CommitDelete{ID: id})
	s.persistConversations()
	s.metrics.Op("delete")
	log.Debug("conversation deleted")
	return nil
}

// =============================================================================
// MESSAGES
// =============================================================================

// SendMessage appends a user message to conversationID, or to the active
// conversation when conversationID is empty, followed by a loading
// placeholder that is filled in asynchronously. It returns the placeholder
// id, or "" when nothing was sent.
func (s *Store) SendMessage(ctx context.Context, content, conversationID string) string {
	text := strings.TrimSpace(content)
	if text == "" {
		return ""
	}

	s.mu.Lock()
	target := conversationID
	if target == "" {
		target = s.state.CurrentConversationID
	}
	if s.state.Index(target) < 0 {
		s.mu.Unlock()
		return ""
	}

	now := s.now()
	user := model.NewUserMessage(text, now)
	placeholder := model.NewPlaceholder(now)

	s.dispatch(AppendExchange{ConversationID: target, User: user, Placeholder: placeholder, At: now})
	s.persistConversations()

	conv, _ := s.state.Find(target)
	req := generate.Request{
		Prompt:   text,
		History:  historyBefore(conv, placeholder.ID),
		Settings: s.state.Settings,
	}
	s.mu.Unlock()

	s.metrics.Op("send")
	lo, hi := s.timing.GenerateRange()
	s.spawn(ctx, "send", target, placeholder.ID, req, lo, hi)
	return placeholder.ID
}

// RegenerateMessage replaces an assistant message of the active
// conversation with a fresh reply. Only messages with CanRegenerate set
// qualify, so the welcome message, messages already loading, user messages
// and unknown ids are ignored.
func (s *Store) RegenerateMessage(ctx context.Context, messageID string) {
	s.mu.Lock()
	conv, ok := s.state.Current()
	if !ok {
		s.mu.Unlock()
		return
	}
	msg, ok := conv.GetMessageByID(messageID)
	if !ok || msg.Role != model.RoleAssistant || msg.IsLoading || !msg.CanRegenerate {
		s.mu.Unlock()
		return
	}

	idx := conv.MessageIndex(messageID)
	prompt, _ := conv.GetLastUserMessage(idx)
	req := generate.Request{
		Prompt:     prompt.Content,
		History:    historyBefore(conv, messageID),
		Settings:   s.state.Settings,
		Regenerate: true,
	}

	s.dispatch(ResetMessage{ConversationID: conv.ID, MessageID: messageID, At: s.now()})
	s.persistConversations()
	s.mu.Unlock()

	s.metrics.Op("regenerate")
	lo, hi := s.timing.RegenerateRange()
	s.spawn(ctx, "regenerate", conv.ID, messageID, req, lo, hi)
}

// DeleteMessage removes a message from the active conversation.
//
// Unlike an unrestricted message delete, the last remaining message of a
// conversation is never removed: every conversation keeps at least one
// message, and a request to remove the sole message is a no-op.
func (s *Store) DeleteMessage(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.state.Current()
	if !ok || conv.MessageIndex(messageID) < 0 {
		return
	}
	if len(conv.Messages) <= 1 {
		s.log.WithField("message", messageID).Debug("refusing to delete the only message")
		return
	}
	s.dispatch(DeleteMessage{ConversationID: conv.ID, MessageID: messageID, At: s.now()})
	s.persistConversations()
	s.metrics.Op("delete_message")
}

// spawn runs one generation on a goroutine tracked by Wait.
func (s *Store) spawn(parent context.Context, kind, convID, messageID string, req generate.Request, lo, hi time.Duration) {
	ctx := context.WithoutCancel(parent)
	delay := jitter(lo, hi)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		start := time.Now()

		timer := time.NewTimer(delay)
		<-timer.C

		resp, err := s.gen.Generate(ctx, req)
		if err == nil && strings.TrimSpace(resp.Content) == "" {
			err = errors.New("empty response")
		}
		s.complete(kind, convID, messageID, resp, err, time.Since(start))
	}()
}

// complete writes a finished generation into its placeholder.
func (s *Store) complete(kind, convID, messageID string, resp generate.Response, genErr error, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.WithFields(logrus.Fields{"conversation": convID, "message": messageID, "kind": kind})

	conv, ok := s.state.Find(convID)
	if !ok {
		log.Debug("generation finished after its conversation was removed")
		return
	}
	msg, ok := conv.GetMessageByID(messageID)
	if !ok || !msg.IsLoading {
		log.Debug("generation finished after its placeholder was removed")
		return
	}

	msg.IsLoading = false
	msg.CanRegenerate = true
	msg.Metadata = &model.Metadata{Model: s.state.Settings.Model, ProcessingTime: elapsed}

	outcome := "ok"
	if genErr != nil {
		outcome = "error"
		err := &ConversationError{Kind: KindGenerationFailed, ID: messageID, Err: genErr}
		log.WithError(err).Warn("generation failed")
		msg.Type = model.TypeError
		msg.Content = GenerationFailedContent
	} else {
		msg.Type = resp.Type
		if !msg.Type.Valid() {
			msg.Type = model.TypeText
		}
		msg.Content = resp.Content
		msg.Metadata.Tokens = model.EstimateTokens(resp.Content)
	}

	s.dispatch(CompleteMessage{ConversationID: convID, Message: msg, At: s.now()})
	s.persistConversations()
	s.metrics.Generation(kind, outcome, elapsed.Seconds())
}

func historyBefore(conv model.Conversation, messageID string) []model.Message {
	idx := conv.MessageIndex(messageID)
	if idx < 0 {
		idx = len(conv.Messages)
	}
	out := make([]model.Message, idx)
	for i := range out {
		out[i] = conv.Messages[i].Clone()
	}
	return out
}

// jitter returns a uniformly distributed duration in [lo, hi].
func jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

// =============================================================================
// SEARCH, EXPORT, IMPORT
// =============================================================================

// Search returns the conversations matching query. See the package-level
// Search for matching rules.
func (s *Store) Search(query string) []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Search(s.state.Conversations, query)
}

// Export renders conversation id in format f. ok is false when id is
// unknown or the format cannot be produced.
func (s *Store) Export(id string, f export.Format) (export.Artifact, bool) {
	s.mu.Lock()
	conv, ok := s.state.Find(id)
	if ok {
		conv = conv.Clone()
	}
	s.mu.Unlock()
	if !ok {
		return export.Artifact{}, false
	}

	art, err := export.Build(conv, f)
	if err != nil {
		s.log.WithError(err).WithField("conversation", id).Warn("export failed")
		return export.Artifact{}, false
	}
	s.metrics.Op("export")
	return art, true
}

// ImportConversation adds a conversation from a JSON export under fresh
// ids, selects it and returns its id. Messages exported while still
// loading are imported as interrupted replies that can be regenerated.
func (s *Store) ImportConversation(data []byte) (string, error) {
	conv, err := export.DecodeImport(data)
	if err != nil {
		return "", &ConversationError{Kind: KindImport, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	conv = repair(conv, now)
	conv.ID = model.NewConversationID(now)
	if strings.TrimSpace(conv.Title) == "" {
		conv.Title = model.DefaultTitle
	}
	for i := range conv.Messages {
		conv.Messages[i].ID = model.NewMessageID()
	}

	s.dispatch(AddConversation{Conversation: conv})
	s.persistConversations()
	s.metrics.Op("import")
	s.log.WithField("conversation", conv.ID).Debug("conversation imported")
	return conv.ID, nil
}

// =============================================================================
// SETTINGS AND UI STATE
// =============================================================================

// UpdateSettings shallow-merges patch into the settings and persists them.
func (s *Store) UpdateSettings(patch model.SettingsPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dispatch(UpdateSettings{Patch: patch})
	s.persistSettings()
	s.metrics.Op("update_settings")
}

// UpdateUIState shallow-merges patch into the UI flags.
func (s *Store) UpdateUIState(patch model.UIStatePatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatch(UpdateUIState{Patch: patch})
}

// ClearError resets the recorded deletion error.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatch(ClearError{})
}

// =============================================================================
// READ ACCESS
// =============================================================================

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Current returns a copy of the active conversation.
func (s *Store) Current() (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.state.Current()
	return conv.Clone(), ok
}

// Conversation returns a copy of conversation id.
func (s *Store) Conversation(id string) (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.state.Find(id)
	return conv.Clone(), ok
}

// Conversations returns a copy of the conversation list.
func (s *Store) Conversations() []model.Conversation {
	return s.Snapshot().Conversations
}

// Settings returns the current settings.
func (s *Store) Settings() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Settings
}

// UIState returns the current UI flags.
func (s *Store) UIState() model.UIState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UIState
}

// Wait blocks until every in-flight generation has been applied.
func (s *Store) Wait() {
	s.wg.Wait()
}

// Close waits for in-flight generations. The KV is owned by the caller and
// is not closed.
func (s *Store) Close() error {
	s.Wait()
	return nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatstore/internal/config"
	"github.com/jeranaias/chatstore/internal/export"
	"github.com/jeranaias/chatstore/internal/generate"
	"github.com/jeranaias/chatstore/internal/logging"
	"github.com/jeranaias/chatstore/internal/model"
	"github.com/jeranaias/chatstore/internal/storage"
)

// =============================================================================
// HELPERS
// =============================================================================

func fastTiming() config.TimingConfig {
	return config.TimingConfig{
		DeleteLatencyMs: 1,
		GenerateMinMs:   1,
		GenerateMaxMs:   3,
		RegenerateMinMs: 1,
		RegenerateMaxMs: 2,
	}
}

// flakyKV fails writes on demand.
type flakyKV struct {
	*storage.MemoryKV
	failSet atomic.Bool
	sets    atomic.Int64
}

func newFlakyKV() *flakyKV {
	return &flakyKV{MemoryKV: storage.NewMemoryKV()}
}

func (f *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	f.sets.Add(1)
	if f.failSet.Load() {
		return errors.New("disk full")
	}
	return f.MemoryKV.Set(ctx, key, value)
}

func newStore(t *testing.T, kv storage.KV, opts Options) *Store {
	t.Helper()
	opts.KV = kv
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Timing == (config.TimingConfig{}) {
		opts.Timing = fastTiming()
	}
	st, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// seed persists conversations titled by names, in order, and returns their ids.
func seed(t *testing.T, kv storage.KV, names ...string) []string {
	t.Helper()
	convs := make([]model.Conversation, len(names))
	ids := make([]string, len(names))
	for i, name := range names {
		convs[i] = model.NewConversation(name, time.Now())
		ids[i] = convs[i].ID
	}
	data, err := storage.EncodeConversations(convs)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), storage.KeyConversations, data))
	return ids
}

func ids(convs []model.Conversation) []string {
	out := make([]string, len(convs))
	for i, c := range convs {
		out[i] = c.ID
	}
	return out
}

func persistedIDs(t *testing.T, kv storage.KV) []string {
	t.Helper()
	data, err := kv.Get(context.Background(), storage.KeyConversations)
	require.NoError(t, err)
	convs, err := storage.DecodeConversations(data)
	require.NoError(t, err)
	return ids(convs)
}

// blockingRemote holds deletions until release is closed.
type blockingRemote struct {
	started chan string
	release chan struct{}
	err     error
}

func newBlockingRemote(err error) *blockingRemote {
	return &blockingRemote{started: make(chan string, 4), release: make(chan struct{}), err: err}
}

func (r *blockingRemote) DeleteConversation(_ context.Context, id string) error {
	r.started <- id
	<-r.release
	return r.err
}

// =============================================================================
// CONSTRUCTION AND HYDRATION
// =============================================================================

func TestNewRequiresKV(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.Error(t, err)
}

func TestScenarioA_EmptyStorage(t *testing.T) {
	st := newStore(t, storage.NewMemoryKV(), Options{})

	convs := st.Conversations()
	require.Len(t, convs, 1)
	require.Len(t, convs[0].Messages, 1)
	assert.Equal(t, model.RoleAssistant, convs[0].Messages[0].Role)
	assert.Equal(t, model.DefaultTitle, convs[0].Title)

	cur, ok := st.Current()
	require.True(t, ok)
	assert.Equal(t, convs[0].ID, cur.ID)
	assert.Equal(t, model.DefaultSettings(), st.Settings())
}

func TestHydrateRestoresPersistedState(t *testing.T) {
	kv := storage.NewMemoryKV()
	first := newStore(t, kv, Options{})
	id := first.CreateConversation("Saved")
	first.UpdateSettings(model.SettingsPatch{Model: model.Ptr("gpt-4o"), FontSize: model.Ptr(16)})

	second := newStore(t, kv, Options{})
	assert.Equal(t, id, second.Snapshot().CurrentConversationID)
	assert.Len(t, second.Conversations(), 2)
	assert.Equal(t, "gpt-4o", second.Settings().Model)
	assert.Equal(t, 16, second.Settings().FontSize)
}

func TestHydrateFallsBackOnCorruptData(t *testing.T) {
	kv := storage.NewMemoryKV()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, storage.KeyConversations, []byte("{{not json")))
	settings := model.DefaultSettings()
	settings.Model = "claude"
	data, err := storage.EncodeSettings(settings)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, storage.KeySettings, data))

	st := newStore(t, kv, Options{})
	require.Len(t, st.Conversations(), 1)
	assert.Equal(t, "claude", st.Settings().Model)
	assert.Equal(t, "claude", st.Conversations()[0].Model)
}

func TestHydrateUsesConfiguredDefaults(t *testing.T) {
	defaults := model.DefaultSettings()
	defaults.Model = "local-llama"

	st := newStore(t, storage.NewMemoryKV(), Options{DefaultSettings: &defaults})
	assert.Equal(t, "local-llama", st.Settings().Model)
}

func TestHydrateRepairsInvariants(t *testing.T) {
	kv := storage.NewMemoryKV()
	empty := model.NewConversation("empty", t0)
	empty.Messages = nil
	stuck := model.NewConversation("stuck", t0)
	stuck.Messages = append(stuck.Messages, model.NewPlaceholder(t0))

	data, err := storage.EncodeConversations([]model.Conversation{empty, stuck})
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), storage.KeyConversations, data))

	st := newStore(t, kv, Options{})
	convs := st.Conversations()
	require.Len(t, convs, 2)

	require.Len(t, convs[0].Messages, 1)
	assert.Equal(t, model.WelcomeContent, convs[0].Messages[0].Content)

	last := convs[1].Messages[1]
	assert.False(t, last.IsLoading)
	assert.True(t, last.CanRegenerate)
	assert.Equal(t, model.TypeError, last.Type)
	assert.Equal(t, InterruptedContent, last.Content)
}

func TestHydrateEmptyListGetsDefault(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(context.Background(), storage.KeyConversations, []byte("[]")))

	st := newStore(t, kv, Options{})
	assert.Len(t, st.Conversations(), 1)
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func TestScenarioB_CreateOrdersMostRecentFirst(t *testing.T) {
	st := newStore(t, storage.NewMemoryKV(), Options{})
	initial := st.Conversations()[0].ID

	c1 := st.CreateConversation("C1")
	c2 := st.CreateConversation("C2")

	snap := st.Snapshot()
	assert.Equal(t, c2, snap.CurrentConversationID)
	assert.Equal(t, []string{c2, c1, initial}, ids(snap.Conversations))
	assert.NotEqual(t, c1, c2)

	conv, ok := st.Conversation(c1)
	require.True(t, ok)
	assert.Equal(t, "C1", conv.Title)
	assert.Len(t, conv.Messages, 1)
	assert.Equal(t, st.Settings().Model, conv.Model)
}

func TestCreateBlankTitleUsesDefault(t *testing.T) {
	st := newStore(t, storage.NewMemoryKV(), Options{})
	id := st.CreateConversation("   ")
	conv, _ := st.Conversation(id)
	assert.Equal(t, model.DefaultTitle, conv.Title)
}

func TestSelectConversation(t *testing.T) {
	st := newStore(t, storage.NewMemoryKV(), Options{})
	first := st.Conversations()[0].ID
	st.CreateConversation("other")

	st.SelectConversation(first)
	assert.Equal(t, first, st.Snapshot().CurrentConversationID)

	st.SelectConversation("missing")
	_, ok := st.Current()
	assert.False(t, ok)
}

func TestUpdateConversation(t *testing.T) {
	var calls atomic.Int64
	now := func() time.Time { return t0.Add(time.Duration(calls.Add(1)) * time.Second) }

	st := newStore(t, storage.NewMemoryKV(), Options{Now: now})
	id := st.Conversations()[0].ID
	before, _ := st.Conversation(id)

	st.UpdateConversation(id, model.ConversationPatch{Title: model.Ptr("Renamed"), IsPinned: model.Ptr(true)})
	after, _ := st.Conversation(id)
	assert.Equal(t, "Renamed", after.Title)
	assert.True(t, after.IsPinned)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

	st.UpdateConversation("missing", model.ConversationPatch{Title: model.Ptr("x")})
	assert.Len(t, st.Conversations(), 1)
}

func TestScenarioC_DeleteActiveSelectsNext(t *testing.T) {
	kv := storage.NewMemoryKV()
	seeded := seed(t, kv, "C1", "C2")
	st := newStore(t, kv, Options{})
	require.Equal(t, seeded[0], st.Snapshot().CurrentConversationID)

	require.NoError(t, st.DeleteConversation(context.Background(), seeded[0]))

	snap := st.Snapshot()
	assert.Equal(t, seeded[1], snap.CurrentConversationID)
	assert.Equal(t, []string{seeded[1]}, ids(snap.Conversations))
	assert.Equal(t, []string{seeded[1]}, persistedIDs(t, kv))
	assert.False(t, st.Deleting(seeded[0]))
	assert.Empty(t, snap.DeletingConversationID)
}

func TestScenarioD_DeleteOtherKeepsSelection(t *testing.T) {
	kv := storage.NewMemoryKV()
	seeded := seed(t, kv, "C1", "C2")
	st := newStore(t, kv, Options{})
	st.SelectConversation(seeded[1])

	require.NoError(t, st.DeleteConversation(context.Background(), seeded[0]))

	snap := st.Snapshot()
	assert.Equal(t, seeded[1], snap.CurrentConversationID)
	assert.Equal(t, []string{seeded[1]}, ids(snap.Conversations))
}

func TestDeleteLastConversationFails(t *testing.T) {
	st := newStore(t, storage.NewMemoryKV(), Options{})
	before := st.Snapshot()

	err := st.DeleteConversation(context.Background(), before.Conversations[0].ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLastConversation))
	assert.Equal(t, before, st.Snapshot())
}

func TestDeleteUnknownFails(t *testing.T) {
	st := newStore(t, storage.NewMemoryKV(), Options{})
	st.CreateConversation("other")
	before := st.Snapshot()

	err := st.DeleteConversation(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, before, st.Snapshot())
}

func TestDeleteWritesOptimistically(t *testing.T) {
	kv := storage.NewMemoryKV()
	seeded := seed(t, kv, "C1", "C2")
	remote := newBlockingRemote(nil)
	st := newStore(t, kv, Options{Remote: remote})

	done := make(chan error, 1)
	go func() { done <- st.DeleteConversation(context.Background(), seeded[0]) }()
	<-remote.started

	assert.True(t, st.Deleting(seeded[0]))
	assert.Equal(t, seeded[0], st.Snapshot().DeletingConversationID)
	assert.Equal(t, []string{seeded[1]}, persistedIDs(t, kv))
	// still present in memory until the remote call settles
	assert.Len(t, st.Conversations(), 2)

	close(remote.release)
	require.NoError(t, <-done)
	assert.Len(t, st.Conversations(), 1)
}

func TestDeleteRollback(t *testing.T) {
	kv := storage.NewMemoryKV()
	seeded := seed(t, kv, "C1", "C2")
	original, err := kv.Get(context.Background(), storage.KeyConversations)
	require.NoError(t, err)

	remoteErr := errors.New("backend unavailable")
	st := newStore(t, kv, Options{Remote: RemoteFunc(func(context.Context, string) error { return remoteErr })})
	before := st.Snapshot()

	err = st.DeleteConversation(context.Background(), seeded[0])
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeleteFailed))
	assert.True(t, errors.Is(err, remoteErr))

	after := st.Snapshot()
	assert.Equal(t, DeleteFailedMessage, after.Error)
	assert.Equal(t, before.CurrentConversationID, after.CurrentConversationID)
	assert.Equal(t, ids(before.Conversations), ids(after.Conversations))
	assert.Empty(t, after.PendingDeletes)
	assert.Empty(t, after.DeletingConversationID)

	restored, err := kv.Get(context.Background(), storage.KeyConversations)
	require.NoError(t, err)
	assert.Equal(t, original, restored)

	st.ClearError()
	assert.Empty(t, st.Snapshot().Error)
}

func TestDeleteRollbackAfterInterveningWrite(t *testing.T) {
	kv := storage.NewMemoryKV()
	seeded := seed(t, kv, "C1", "C2")
	remote := newBlockingRemote(errors.New("timeout"))
	st := newStore(t, kv, Options{Remote: remote})

	done := make(chan error, 1)
	go func() { done <- st.DeleteConversation(context.Background(), seeded[0]) }()
	<-remote.started

	added := st.CreateConversation("during delete")
	// the pending deletion stays out of storage while other writes happen
	assert.Equal(t, []string{added, seeded[1]}, persistedIDs(t, kv))

	close(remote.release)
	require.Error(t, <-done)

	want := []string{added, seeded[0], seeded[1]}
	assert.Equal(t, want, ids(st.Conversations()))
	assert.Equal(t, want, persistedIDs(t, kv))
}

func TestDeleteInProgressRejected(t *testing.T) {
	kv := storage.NewMemoryKV()
	seeded := seed(t, kv, "C1", "C2", "C3")
	remote := newBlockingRemote(nil)
	st := newStore(t, kv, Options{Remote: remote})

	done := make(chan error, 1)
	go func() { done <- st.DeleteConversation(context.Background(), seeded[0]) }()
	<-remote.started

	err := st.DeleteConversation(context.Background(), seeded[0])
	assert.True(t, errors.Is(err, ErrDeleteInProgress))

	close(remote.release)
	require.NoError(t, <-done)
	assert.Len(t, st.Conversations(), 2)
}

func TestConcurrentDeletesKeepOneConversation(t *testing.T) {
	kv := storage.NewMemoryKV()
	seeded := seed(t, kv, "C1", "C2")
	remote := newBlockingRemote(nil)
	st := newStore(t, kv, Options{Remote: remote})

	done := make(chan error, 1)
	go func() { done <- st.DeleteConversation(context.Background(), seeded[0]) }()
	<-remote.started

	err := st.DeleteConversation(context.Background(), seeded[1])
	assert.True(t, errors.Is(err, ErrLastConversation))

	close(remote.release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{seeded[1]}, ids(st.Conversations()))
}

func TestDeleteIgnoresCallerCancellation(t *testing.T) {
	kv := storage.NewMemoryKV()
	seeded := seed(t, kv, "C1", "C2")
	st := newStore(t, kv, Options{Remote: SimulatedRemote{Latency: 5 * time.Millisecond}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, st.DeleteConversation(ctx, seeded[0]))
	assert.Len(t, st.Conversations(), 1)
}

// =============================================================================
// MESSAGES
// =============================================================================

func TestScenarioE_SendMessage(t *testing.T) {
	st := newStore(t, storage.NewMemoryKV(), Options{})
	id := st.Conversations()[0].ID

	placeholderID := st.SendMessage(context.Background(), "Hello", "")
	require.NotEmpty(t, placeholderID)

	conv, _ := st.Conversation(id)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, model.RoleUser, conv.Messages[1].Role)
	assert.Equal(t, "Hello", conv.Messages[1].Content)
	assert.Equal(t, placeholderID, conv.Messages[2].ID)
	assert.True(t, conv.Messages[2].IsLoading)
	assert.Empty(t, conv.Messages[2].Content)
	assert.Equal(t, "Hello", conv.Title)

	st.Wait()

	conv, _ = st.Conversation(id)
	require.Len(t, conv.Messages, 3)
	reply := conv.Messages[2]
	assert.Equal(t, placeholderID, reply.ID)
	assert.False(t, reply.IsLoading)
	assert.NotEmpty(t, reply.Content)
	assert.True(t, reply.CanRegenerate)
	require.NotNil(t, reply.Metadata)
	assert.Equal(t, st.Settings().Model, reply.Metadata.Model)
	assert.Equal(t, model.EstimateTokens(reply.Content), reply.Metadata.Tokens)
	assert.Positive(t, reply.Metadata.ProcessingTime)
}

func TestSendWhitespaceIsNoOp(t *testing.T) {
	st := newStore(t, storage.NewMemoryKV(), Options{})
	before := st.Snapshot()

	assert.Empty(t, st.SendMessage(context.Background(), "  ", ""))
	assert.Empty(t, st.SendMessage(context.Background(), "hi", "missing"))
	assert.Equal(t, before, st.Snapshot())
}

func TestSendNoActiveConversationIsNoOp(t *testing.T) {
	st := newStore(t, storage.NewMemoryKV(), Options{})
	st.SelectConversation("missing")
	assert.Empty(t, st.SendMessage(context.Background(), "hi", ""))
}

func TestSendToExplicitConversation(t *testing.T) {
	st := newStore(t, storage.NewMemoryKV(), Options{})
	target := st.Conversations()[0].ID
	active := st.CreateConversation("active")

	st.SendMessage(context.Background(), "for the other one", target)
	st.Wait()

	other, _ := st.Conversation(target)
	cur, _ := st.Conversation(active)
	assert.Len(t, other.Messages, 3)
	assert.Len(t, cur.Messages, 1)
	assert.Equal(t, active, st.Snapshot().CurrentConversationID)
}

func TestSendDerivesTitle(t *testing.T) {
	st := newStore(t, storage.NewMemoryKV(), Options{})
	id := st.Conversations()[0].ID
	long := strings.Repeat("é", 60)

	st.SendMessage(context.Background(), "  "+long+"  ", "")
	conv, _ := st.Conversation(id)
	assert.Equal(t, strings.Repeat("é", 50)+"...", conv.Title)

	st.SendMessage(context.Background(), "again", "")
	st.Wait()
	conv, _ = st.Conversation(id)
	assert.Equal(t, strings.Repeat("é", 50)+"...", conv.Title)
	assert.Len(t, conv.Messages, 5)
}

func TestGenerationFailureMarksError(t *testing.T) {
	gen := generate.Func(func(context.Context, generate.Request) (generate.Response, error) {
		return generate.Response{}, errors.New("model offline")
	})
	st := newStore(t, storage.NewMemoryKV(), Options{Generator: gen})

	placeholderID := st.SendMessage(context.Background(), "Hello", "")
	st.Wait()

	conv, _ := st.Current()
	msg, ok := conv.GetMessageByID(placeholderID)
	require.True(t, ok)
	assert.False(t, msg.IsLoading)
	assert.Equal(t, model.TypeError, msg.Type)
	assert.Equal(t, GenerationFailedContent, msg.Content)
	assert.True(t, msg.CanRegenerate)
}

func TestEmptyGenerationIsFailure(t *testing.T) {
	gen := generate.Func(func(context.Context, generate.Request) (generate.Response, error) {
		return generate.Response{Content: "   "}, nil
	})
	st := newStore(t, storage.NewMemoryKV(), Options{Generator: gen})

	placeholderID := st.SendMessage(context.Background(), "Hello", "")
	st.Wait()

	conv, _ := st.Current()
	msg, _ := conv.GetMessageByID(placeholderID)
	assert.Equal(t, model.TypeError, msg.Type)
}

func TestGeneratorReceivesContext(t *testing.T) {
	var got generate.Request
	var mu sync.Mutex
	gen := generate.Func(func(ctx context.Context, req generate.Request) (generate.Response, error) {
		mu.Lock()
		got = req
		mu.Unlock()
		return generate.Response{Content: "ok", Type: model.TypeCode}, ctx.Err()
	})
	st := newStore(t, storage.NewMemoryKV(), Options{Generator: gen})

	ctx, cancel := context.WithCancel(context.Background())
	placeholderID := st.SendMessage(ctx, "write a contract", "")
	cancel()
	st.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "write a contract", got.Prompt)
	require.Len(t, got.History, 2)
	assert.Equal(t, st.Settings(), got.Settings)

	conv, _ := st.Current()
	msg, _ := conv.GetMessageByID(placeholderID)
	assert.Equal(t, model.TypeCode, msg.Type, "caller cancellation must not reach the generator")
}

func TestCompletionAfterPlaceholderDeleted(t *testing.T) {
	release := make(chan struct{})
	gen := generate.Func(func(context.Context, generate.Request) (generate.Response, error) {
		<-release
		return generate.Response{Content: "late", Type: model.TypeText}, nil
	})
	st := newStore(t, storage.NewMemoryKV(), Options{Generator: gen})

	placeholderID := st.SendMessage(context.Background(), "Hello", "")
	st.DeleteMessage(placeholderID)
	close(release)
	st.Wait()

	conv, _ := st.Current()
	assert.Len(t, conv.Messages, 2)
	_, ok := conv.GetMessageByID(placeholderID)
	assert.False(t, ok)
}

func TestCompletionAfterConversationDeleted(t *testing.T) {
	release := make(chan struct{})
	gen := generate.Func(func(context.Context, generate.Request) (generate.Response, error) {
		<-release
		return generate.Response{Content: "late"}, nil
	})
	st := newStore(t, storage.NewMemoryKV(), Options{Generator: gen})
	keep := st.Conversations()[0].ID
	doomed := st.CreateConversation("doomed")

	st.SendMessage(context.Background(), "Hello", doomed)
	require.NoError(t, st.DeleteConversation(context.Background(), doomed))
	close(release)
	st.Wait()

	assert.Equal(t, []string{keep}, ids(st.Conversations()))
}

func TestRegenerateMessage(t *testing.T) {
	st := newStore(t, storage.NewMemoryKV(), Options{})
	placeholderID := st.SendMessage(context.Background(), "Analyze my portfolio", "")
	st.Wait()

	st.RegenerateMessage(context.Background(), placeholderID)
	conv, _ := st.Current()
	msg, _ := conv.GetMessageByID(placeholderID)
	assert.True(t, msg.IsLoading)
	assert.Empty(t, msg.Content)
	assert.Equal(t, 2, conv.MessageIndex(placeholderID), "regeneration replaces in place")

	st.Wait()
	conv, _ = st.Current()
	msg, _ = conv.GetMessageByID(placeholderID)
	assert.False(t, msg.IsLoading)
	assert.True(t, strings.HasPrefix(msg.Content, "Here's another take."))
	assert.Equal(t, model.TypeAnalysis, msg.Type)
	assert.Len(t, conv.Messages, 3)
}

func TestRegenerateIgnoredCases(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int64
	gen := generate.Func(func(context.Context, generate.Request) (generate.Response, error) {
		calls.Add(1)
		<-release
		return generate.Response{Content: "reply"}, nil
	})
	st := newStore(t, storage.NewMemoryKV(), Options{Generator: gen})
	placeholderID := st.SendMessage(context.Background(), "Hello", "")
	conv, _ := st.Current()
	userID := conv.Messages[1].ID

	// still loading
	st.RegenerateMessage(context.Background(), placeholderID)
	// user messages are not regenerated
	st.RegenerateMessage(context.Background(), userID)
	st.RegenerateMessage(context.Background(), "missing")

	close(release)
	st.Wait()
	assert.Equal(t, int64(1), calls.Load())

	st.SelectConversation("missing")
	st.RegenerateMessage(context.Background(), placeholderID)
	st.Wait()
	assert.Equal(t, int64(1), calls.Load())
}

func TestRegenerateSkipsWelcomeMessage(t *testing.T) {
	var calls atomic.Int64
	gen := generate.Func(func(context.Context, generate.Request) (generate.Response, error) {
		calls.Add(1)
		return generate.Response{Content: "reply"}, nil
	})
	st := newStore(t, storage.NewMemoryKV(), Options{Generator: gen})
	conv, _ := st.Current()
	welcome := conv.Messages[0]
	require.False(t, welcome.CanRegenerate)

	st.RegenerateMessage(context.Background(), welcome.ID)
	st.Wait()

	assert.Equal(t, int64(0), calls.Load())
	conv, _ = st.Current()
	assert.Equal(t, model.WelcomeContent, conv.Messages[0].Content)
	assert.False(t, conv.Messages[0].IsLoading)
}

func TestDeleteMessage(t *testing.T) {
	st := newStore(t, storage.NewMemoryKV(), Options{})
	st.SendMessage(context.Background(), "Hello", "")
	st.Wait()

	conv, _ := st.Current()
	userID := conv.Messages[1].ID
	st.DeleteMessage(userID)

	conv, _ = st.Current()
	assert.Len(t, conv.Messages, 2)
	_, ok := conv.GetMessageByID(userID)
	assert.False(t, ok)

	st.DeleteMessage(conv.Messages[1].ID)
	st.DeleteMessage(conv.Messages[0].ID)
	conv, _ = st.Current()
	assert.Len(t, conv.Messages, 1, "the last message is never removed")
}

// =============================================================================
// SEARCH, EXPORT, IMPORT
// =============================================================================

func TestSearch(t *testing.T) {
	st := newStore(t, storage.NewMemoryKV(), Options{})
	street := st.CreateConversation("Straße prices")
	gas := st.CreateConversation("Gas fees")
	st.SendMessage(context.Background(), "What about ETHEREUM staking?", gas)
	st.Wait()

	all := ids(st.Conversations())
	assert.Equal(t, all, ids(st.Search("")))
	assert.Equal(t, all, ids(st.Search("   ")))

	assert.Equal(t, []string{gas}, ids(st.Search("ethereum")))
	assert.Equal(t, []string{street}, ids(st.Search("STRASSE")))
	assert.Empty(t, st.Search("no such words anywhere"))

	// welcome message content is searchable in every conversation
	assert.Len(t, st.Search("PORTFOLIO"), len(all))
}

func TestExport(t *testing.T) {
	st := newStore(t, storage.NewMemoryKV(), Options{})
	id := st.CreateConversation("Weekly Review")
	before := st.Snapshot()

	art, ok := st.Export(id, export.FormatMarkdown)
	require.True(t, ok)
	assert.Equal(t, "weekly_review.md", art.Filename)
	assert.Equal(t, "text/markdown", art.MimeType)
	assert.Contains(t, string(art.Content), "# Weekly Review")
	assert.Equal(t, before, st.Snapshot())

	_, ok = st.Export("missing", export.FormatJSON)
	assert.False(t, ok)
	_, ok = st.Export(id, export.Format("pdf"))
	assert.False(t, ok)
}

func TestExportImportRoundTrip(t *testing.T) {
	st := newStore(t, storage.NewMemoryKV(), Options{})
	src := st.Conversations()[0].ID
	st.SendMessage(context.Background(), "Show me a chart", "")
	st.Wait()

	art, ok := st.Export(src, export.FormatJSON)
	require.True(t, ok)

	imported, err := st.ImportConversation(art.Content)
	require.NoError(t, err)
	assert.NotEqual(t, src, imported)
	assert.Equal(t, imported, st.Snapshot().CurrentConversationID)
	assert.Equal(t, imported, st.Conversations()[0].ID)

	orig, _ := st.Conversation(src)
	copied, _ := st.Conversation(imported)
	require.Len(t, copied.Messages, len(orig.Messages))
	for i := range orig.Messages {
		assert.Equal(t, orig.Messages[i].Content, copied.Messages[i].Content)
		assert.Equal(t, orig.Messages[i].Role, copied.Messages[i].Role)
		assert.NotEqual(t, orig.Messages[i].ID, copied.Messages[i].ID)
	}
	assert.Equal(t, orig.Title, copied.Title)
}

func TestImportWhileGenerating(t *testing.T) {
	release := make(chan struct{})
	gen := generate.Func(func(context.Context, generate.Request) (generate.Response, error) {
		<-release
		return generate.Response{Content: "late"}, nil
	})
	st := newStore(t, storage.NewMemoryKV(), Options{Generator: gen})
	src := st.Conversations()[0].ID
	placeholderID := st.SendMessage(context.Background(), "Hello", "")
	require.NotEmpty(t, placeholderID)

	art, ok := st.Export(src, export.FormatJSON)
	close(release)
	require.True(t, ok)
	assert.Contains(t, string(art.Content), `"isLoading": true`)

	imported, err := st.ImportConversation(art.Content)
	require.NoError(t, err)
	st.Wait()

	copied, ok := st.Conversation(imported)
	require.True(t, ok)
	require.Len(t, copied.Messages, 3)
	assert.Equal(t, model.RoleUser, copied.Messages[1].Role)
	assert.Equal(t, "Hello", copied.Messages[1].Content)

	last := copied.Messages[2]
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.False(t, last.IsLoading)
	assert.True(t, last.CanRegenerate)
	assert.Equal(t, model.TypeError, last.Type)
	assert.Equal(t, InterruptedContent, last.Content)

	// The imported copy is settled and may be regenerated like any failed reply.
	st.RegenerateMessage(context.Background(), last.ID)
	st.Wait()
	copied, _ = st.Conversation(imported)
	assert.Equal(t, "late", copied.Messages[2].Content)
}

func TestImportRejectsBadInput(t *testing.T) {
	st := newStore(t, storage.NewMemoryKV(), Options{})

	_, err := st.ImportConversation([]byte("not json"))
	assert.True(t, errors.Is(err, ErrImport))

	_, err = st.ImportConversation([]byte(`{"id":"x","title":"t","messages":[],"createdAt":"2025-01-01T00:00:00.000Z","updatedAt":"2025-01-01T00:00:00.000Z"}`))
	assert.True(t, errors.Is(err, ErrImport))
	assert.Len(t, st.Conversations(), 1)
}

// =============================================================================
// SETTINGS, UI STATE, PERSISTENCE
// =============================================================================

func TestUpdateUIStateIsNotPersisted(t *testing.T) {
	kv := newFlakyKV()
	st := newStore(t, kv, Options{})
	writes := kv.sets.Load()

	st.UpdateUIState(model.UIStatePatch{SearchQuery: model.Ptr("eth"), SidebarCollapsed: model.Ptr(true)})
	ui := st.UIState()
	assert.Equal(t, "eth", ui.SearchQuery)
	assert.True(t, ui.SidebarCollapsed)
	assert.Equal(t, model.TabConversations, ui.ActiveTab)
	assert.Equal(t, writes, kv.sets.Load())
}

func TestPersistenceFailuresAreSwallowed(t *testing.T) {
	kv := newFlakyKV()
	st := newStore(t, kv, Options{})
	kv.failSet.Store(true)

	id := st.CreateConversation("in memory only")
	st.SendMessage(context.Background(), "Hello", id)
	st.UpdateSettings(model.SettingsPatch{Temperature: model.Ptr(0.2)})
	st.Wait()

	conv, ok := st.Conversation(id)
	require.True(t, ok)
	assert.Len(t, conv.Messages, 3)
	assert.False(t, conv.Messages[2].IsLoading)
	assert.Equal(t, 0.2, st.Settings().Temperature)
	assert.Empty(t, st.Snapshot().Error)

	_, err := kv.Get(context.Background(), storage.KeyConversations)
	assert.True(t, errors.Is(err, storage.ErrKeyNotFound))
}

func TestSnapshotIsACopy(t *testing.T) {
	st := newStore(t, storage.NewMemoryKV(), Options{})
	snap := st.Snapshot()
	snap.Conversations[0].Title = "mutated"
	snap.Conversations[0].Messages[0].Content = "mutated"

	conv, _ := st.Current()
	assert.Equal(t, model.DefaultTitle, conv.Title)
	assert.Equal(t, model.WelcomeContent, conv.Messages[0].Content)
}

func TestErrorMessages(t *testing.T) {
	err := &ConversationError{Kind: KindDeleteFailed, ID: "conv_1", Err: errors.New("boom")}
	assert.Equal(t, `failed to delete conversation "conv_1": boom`, err.Error())
	assert.True(t, errors.Is(err, ErrDeleteFailed))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "cannot delete the last remaining conversation", ErrLastConversation.Error())
}

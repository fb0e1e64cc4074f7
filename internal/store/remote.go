// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"time"
)

// Remote performs the remote half of a conversation deletion.
type Remote interface {
	DeleteConversation(ctx context.Context, id string) error
}

// RemoteFunc adapts a plain function to Remote.
type RemoteFunc func(ctx context.Context, id string) error

// DeleteConversation calls f.
func (f RemoteFunc) DeleteConversation(ctx context.Context, id string) error {
	return f(ctx, id)
}

// SimulatedRemote models a network-bound deletion that always succeeds
// after Latency.
type SimulatedRemote struct {
	Latency time.Duration
}

// DeleteConversation waits for the configured latency.
func (r SimulatedRemote) DeleteConversation(ctx context.Context, _ string) error {
	if r.Latency <= 0 {
		return nil
	}
	timer := time.NewTimer(r.Latency)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

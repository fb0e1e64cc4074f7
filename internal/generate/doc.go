// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package generate produces assistant replies for the conversation store.
//
// The Generator interface is the seam where a real inference backend would
// plug in. Stub is the built-in implementation: it picks a message type from
// keywords in the prompt and answers with canned content, so the store's
// asynchronous placeholder flow can be exercised without a model.
package generate

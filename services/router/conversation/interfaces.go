// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package conversation provides the TTL-bounded, ordered per-conversation
// message log. Two backends are provided: an embedded Badger store for
// production and an in-memory store for tests and storage-less deployments.
//
// # Atomicity Contract
//
// Append is a single atomic operation against the backing store. Two
// concurrent appends to the same conversation commit in some total order,
// never interleaved and never lost; the store, not the caller, assigns the
// position. Callers must not implement append as read-modify-write on top
// of History.
package conversation

import (
	"context"
	"time"

	"github.com/meridianpay/agent-router/services/router/datatypes"
)

// DefaultTTL is the retention window for an inactive conversation.
const DefaultTTL = 24 * time.Hour

// Store is the conversation history contract.
//
// # Description
//
// A conversation is created lazily on first Append and becomes invisible to
// History once its TTL elapses without activity; no explicit delete is
// required. Append refreshes the TTL. History returns exchanges in append
// order and is idempotent between appends.
//
// The user→conversation index is optional bookkeeping: Track is idempotent,
// and ListConversations reflects only conversations that are still live.
//
// # Thread Safety
//
// All methods must be safe for concurrent use.
type Store interface {
	// Append adds one exchange to the end of the conversation's log,
	// creating the conversation if absent and refreshing its expiry.
	Append(ctx context.Context, conversationId string, ex datatypes.Exchange) error

	// History returns the full log in append order. Unknown or expired
	// conversations yield an empty slice and a nil error.
	History(ctx context.Context, conversationId string) ([]datatypes.Exchange, error)

	// Track records that conversationId belongs to userId. Adding the same
	// pair twice is a no-op.
	Track(ctx context.Context, userId, conversationId string) error

	// ListConversations returns the live conversation ids tracked for
	// userId. Unknown users yield an empty slice.
	ListConversations(ctx context.Context, userId string) ([]string, error)

	// Count returns the number of live exchanges in the conversation.
	Count(ctx context.Context, conversationId string) (int, error)

	// Clear removes the conversation and its exchanges immediately.
	Clear(ctx context.Context, conversationId string) error

	// Close releases backing-store resources.
	Close() error
}

// Sweeper is implemented by stores that support bulk removal of expired
// conversations. The background TTL scheduler calls Sweep periodically;
// query-time filtering in History covers the window between sweeps.
type Sweeper interface {
	// Sweep deletes every expired conversation and returns how many were
	// removed.
	Sweep(ctx context.Context) (int, error)
}

// storedExchange wraps an exchange with the absolute expiry it carried at
// append time. The expiry mirrors the conversation's expiry as of the most
// recent append that touched it.
type storedExchange struct {
	datatypes.Exchange
	ExpiresAt int64 `json:"expires_at"` // Unix milliseconds
}

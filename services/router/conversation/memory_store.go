// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/meridianpay/agent-router/services/router/datatypes"

	"github.com/meridianpay/agent-router/services/router/ttl"
)

// memoryConversation is one conversation's log plus its current expiry.
type memoryConversation struct {
	expiresAt int64 // Unix milliseconds
	entries   []storedExchange
}

// MemoryStore implements Store entirely in process memory.
//
// # Description
//
// Appends take the store mutex, so concurrent appends to one conversation
// linearize with no interleaving and no loss. Nothing survives a restart;
// this backend serves tests and storage-less deployments where history is
// best-effort.
//
// # Thread Safety
//
// Safe for concurrent use; a single mutex guards all state.
type MemoryStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	filter ttl.ExpiryFilter
	now    func() time.Time

	conversations map[string]*memoryConversation
	users         map[string]map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store. A non-positive retention
// falls back to DefaultTTL.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = DefaultTTL
	}
	return &MemoryStore{
		ttl:           retention,
		filter:        ttl.NewExpiryFilter(0),
		now:           time.Now,
		conversations: make(map[string]*memoryConversation),
		users:         make(map[string]map[string]struct{}),
	}
}

// Append implements the Store interface.
func (s *MemoryStore) Append(ctx context.Context, conversationId string, ex datatypes.Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := s.now().Add(s.ttl).UnixMilli()
	conv, ok := s.conversations[conversationId]
	if !ok || s.filter.IsExpired(conv.expiresAt, s.now()) {
		conv = &memoryConversation{}
		s.conversations[conversationId] = conv
	}
	conv.expiresAt = expiresAt
	conv.entries = append(conv.entries, storedExchange{Exchange: ex, ExpiresAt: expiresAt})
	return nil
}

// History implements the Store interface.
func (s *MemoryStore) History(ctx context.Context, conversationId string) ([]datatypes.Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationId]
	if !ok || s.filter.IsExpired(conv.expiresAt, s.now()) {
		return nil, nil
	}

	history := make([]datatypes.Exchange, 0, len(conv.entries))
	for _, entry := range conv.entries {
		history = append(history, entry.Exchange)
	}
	return history, nil
}

// Track implements the Store interface.
func (s *MemoryStore) Track(ctx context.Context, userId, conversationId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.users[userId]
	if !ok {
		set = make(map[string]struct{})
		s.users[userId] = set
	}
	set[conversationId] = struct{}{}
	return nil
}

// ListConversations implements the Store interface.
func (s *MemoryStore) ListConversations(ctx context.Context, userId string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for conversationId := range s.users[userId] {
		conv, ok := s.conversations[conversationId]
		if ok && !s.filter.IsExpired(conv.expiresAt, s.now()) {
			ids = append(ids, conversationId)
		}
	}
	return ids, nil
}

// Count implements the Store interface.
func (s *MemoryStore) Count(ctx context.Context, conversationId string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationId]
	if !ok || s.filter.IsExpired(conv.expiresAt, s.now()) {
		return 0, nil
	}
	return len(conv.entries), nil
}

// Clear implements the Store interface.
func (s *MemoryStore) Clear(ctx context.Context, conversationId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, conversationId)
	return nil
}

// Sweep implements the Sweeper interface.
func (s *MemoryStore) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for conversationId, conv := range s.conversations {
		if s.filter.IsExpired(conv.expiresAt, s.now()) {
			delete(s.conversations, conversationId)
			removed++
		}
	}
	return removed, nil
}

// Close implements the Store interface.
func (s *MemoryStore) Close() error {
	return nil
}

var (
	_ Store   = (*MemoryStore)(nil)
	_ Sweeper = (*MemoryStore)(nil)
)

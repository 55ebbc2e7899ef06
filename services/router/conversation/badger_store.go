// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/meridianpay/agent-router/services/router/datatypes"
	"github.com/meridianpay/agent-router/services/router/ttl"
)

// Key layout. Identifiers are opaque client strings, so components are
// separated with a NUL byte, which cannot appear in valid JSON string
// content that survived sanitization.
//
//	meta\x00<conversationId>                  -> conversationMeta
//	msg\x00<conversationId>\x00<seq:8 bytes>  -> storedExchange
//	user\x00<userId>\x00<conversationId>      -> (empty, Badger-native TTL)
var (
	metaPrefix = []byte("meta\x00")
	msgPrefix  = []byte("msg\x00")
	userPrefix = []byte("user\x00")
)

const keySep = byte(0x00)

// conversationMeta is the per-conversation record carrying the expiry that
// governs visibility. Refreshed on every append.
type conversationMeta struct {
	ExpiresAt int64 `json:"expires_at"` // Unix milliseconds
}

// BadgerStore implements Store on an embedded Badger database.
//
// # Description
//
// Each append commits one exchange entry plus the refreshed conversation
// meta in a single Badger transaction, which makes the append atomic and
// linearized by the store's commit order. Exchange positions come from a
// store-wide monotonic sequence, so concurrent appends to one conversation
// land in a total order with no interleaving and no loss.
//
// Expired conversations are invisible to reads immediately (the expiry is
// checked query-time) and are physically removed by the background sweeper.
//
// # Thread Safety
//
// Safe for concurrent use; Badger provides the required isolation.
type BadgerStore struct {
	db     *badger.DB
	seq    *badger.Sequence
	ttl    time.Duration
	filter ttl.ExpiryFilter
	now    func() time.Time
}

// NewBadgerStore opens (or creates) a Badger database at path. An empty
// path opens an in-memory database, used by tests and storage-less runs.
func NewBadgerStore(path string, retention time.Duration) (*BadgerStore, error) {
	if retention <= 0 {
		retention = DefaultTTL
	}

	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open the conversation store: %w", err)
	}

	seq, err := db.GetSequence([]byte("conversation_seq"), 128)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open the append sequence: %w", err)
	}

	slog.Info("Conversation store opened",
		"path", path,
		"in_memory", path == "",
		"ttl", retention.String(),
	)
	return &BadgerStore{
		db:     db,
		seq:    seq,
		ttl:    retention,
		filter: ttl.NewExpiryFilter(0),
		now:    time.Now,
	}, nil
}

// Append implements the Store interface.
func (s *BadgerStore) Append(ctx context.Context, conversationId string, ex datatypes.Exchange) error {
	seq, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to reserve an append position: %w", err)
	}

	expiresAt := s.now().Add(s.ttl).UnixMilli()
	entry := storedExchange{Exchange: ex, ExpiresAt: expiresAt}
	entryBytes, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode the exchange: %w", err)
	}
	metaBytes, err := json.Marshal(conversationMeta{ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("failed to encode the conversation meta: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(msgKey(conversationId, seq), entryBytes); err != nil {
			return err
		}
		return txn.Set(metaKey(conversationId), metaBytes)
	})
	if err != nil {
		return fmt.Errorf("failed to append to conversation %s: %w", conversationId, err)
	}
	return nil
}

// History implements the Store interface.
func (s *BadgerStore) History(ctx context.Context, conversationId string) ([]datatypes.Exchange, error) {
	var history []datatypes.Exchange

	err := s.db.View(func(txn *badger.Txn) error {
		alive, err := s.conversationAlive(txn, conversationId)
		if err != nil || !alive {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = msgKeyPrefix(conversationId)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var entry storedExchange
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				slog.Warn("Skipping undecodable exchange entry",
					"conversation_id", conversationId,
					"error", err,
				)
				continue
			}
			history = append(history, entry.Exchange)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation %s: %w", conversationId, err)
	}
	return history, nil
}

// Track implements the Store interface. Index entries use Badger's native
// per-key TTL and self-expire; re-tracking an active conversation refreshes
// the entry, and duplicate tracking is a no-op by construction.
func (s *BadgerStore) Track(ctx context.Context, userId, conversationId string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(userKey(userId, conversationId), nil).WithTTL(s.ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("failed to track conversation %s for user %s: %w", conversationId, userId, err)
	}
	return nil
}

// ListConversations implements the Store interface. Only conversations whose
// meta record is still live are returned.
func (s *BadgerStore) ListConversations(ctx context.Context, userId string) ([]string, error) {
	var ids []string

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := userKeyPrefix(userId)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			conversationId := string(bytes.TrimPrefix(it.Item().Key(), prefix))
			alive, err := s.conversationAlive(txn, conversationId)
			if err != nil {
				return err
			}
			if alive {
				ids = append(ids, conversationId)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations for user %s: %w", userId, err)
	}
	return ids, nil
}

// Count implements the Store interface.
func (s *BadgerStore) Count(ctx context.Context, conversationId string) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		alive, err := s.conversationAlive(txn, conversationId)
		if err != nil || !alive {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = msgKeyPrefix(conversationId)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count conversation %s: %w", conversationId, err)
	}
	return count, nil
}

// Clear implements the Store interface.
func (s *BadgerStore) Clear(ctx context.Context, conversationId string) error {
	keys, err := s.collectConversationKeys(conversationId)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear conversation %s: %w", conversationId, err)
	}
	return nil
}

// Sweep implements the Sweeper interface: it removes every conversation
// whose expiry has passed and reports how many were deleted.
func (s *BadgerStore) Sweep(ctx context.Context) (int, error) {
	var expired []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = metaPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			conversationId := string(bytes.TrimPrefix(it.Item().Key(), metaPrefix))
			var meta conversationMeta
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			})
			if err != nil {
				continue
			}
			if s.filter.IsExpired(meta.ExpiresAt, s.now()) {
				expired = append(expired, conversationId)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan for expired conversations: %w", err)
	}

	for _, conversationId := range expired {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if err := s.Clear(ctx, conversationId); err != nil {
			return 0, err
		}
	}
	return len(expired), nil
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		slog.Warn("Failed to release the append sequence", "error", err)
	}
	return s.db.Close()
}

// conversationAlive reads the conversation meta within txn and applies the
// query-time expiry check.
func (s *BadgerStore) conversationAlive(txn *badger.Txn, conversationId string) (bool, error) {
	item, err := txn.Get(metaKey(conversationId))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var meta conversationMeta
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	}); err != nil {
		return false, err
	}
	return !s.filter.IsExpired(meta.ExpiresAt, s.now()), nil
}

func (s *BadgerStore) collectConversationKeys(conversationId string) ([][]byte, error) {
	keys := [][]byte{metaKey(conversationId)}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = msgKeyPrefix(conversationId)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect keys for conversation %s: %w", conversationId, err)
	}
	return keys, nil
}

func metaKey(conversationId string) []byte {
	return append(append([]byte{}, metaPrefix...), conversationId...)
}

func msgKeyPrefix(conversationId string) []byte {
	key := append(append([]byte{}, msgPrefix...), conversationId...)
	return append(key, keySep)
}

// msgKey encodes the sequence big-endian so byte order equals append order.
func msgKey(conversationId string, seq uint64) []byte {
	key := msgKeyPrefix(conversationId)
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	return append(key, seqBytes[:]...)
}

func userKeyPrefix(userId string) []byte {
	key := append(append([]byte{}, userPrefix...), userId...)
	return append(key, keySep)
}

func userKey(userId, conversationId string) []byte {
	return append(userKeyPrefix(userId), conversationId...)
}

var (
	_ Store   = (*BadgerStore)(nil)
	_ Sweeper = (*BadgerStore)(nil)
)

// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/Git-Shashi/intellichat/datatypes"
	"github.com/Git-Shashi/intellichat/services/ai"
)

// Key prefixes for the two keyspaces.
const (
	convPrefix = "conv/"
	msgPrefix  = "msg/"
)

// maxTxnRetries bounds the conflict retry loop on serialized mutations.
// With the jittered backoff below this rides out far more contention
// than concurrent sends to one conversation can produce.
const maxTxnRetries = 16

// Listing defaults for List.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func convKey(ownerID, id string) []byte {
	return []byte(convPrefix + ownerID + "/" + id)
}

// ConversationStore persists conversation metadata.
//
// # Description
//
// Every write that could race with another request (counter increments,
// last-message pointers, title updates) goes through a serialized
// read-modify-write transaction that retries on commit conflict, so
// concurrent sends to the same conversation never lose updates. The
// provider/model pin is checked at every write path that can set it;
// a conversation whose model does not belong to its provider cannot be
// persisted.
type ConversationStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewConversationStore creates a ConversationStore. Panics if db is nil.
func NewConversationStore(db *badger.DB) *ConversationStore {
	if db == nil {
		panic("NewConversationStore: db is required")
	}
	return &ConversationStore{
		db:     db,
		logger: slog.Default().With("component", "conversation_store"),
	}
}

// Create persists a new conversation for ownerID.
//
// # Description
//
// Omitted fields are defaulted: provider to groq, model to the
// provider's default, title to the placeholder. A model that does not
// belong to the provider's model list is rejected with a
// ValidationError before anything is written.
func (s *ConversationStore) Create(ctx context.Context, ownerID string, req datatypes.CreateConversationRequest) (*datatypes.Conversation, error) {
	provider := req.AIProvider
	if provider == "" {
		provider = ai.ProviderGroq
	}
	defaultModel, ok := ai.DefaultModelFor(provider)
	if !ok {
		return nil, ai.NewValidationError("aiProvider", fmt.Sprintf("unsupported provider %q", provider))
	}
	model := req.AIModel
	if model == "" {
		model = defaultModel
	}
	if !ai.ValidModel(provider, model) {
		return nil, ai.NewValidationError("aiModel", fmt.Sprintf("model %q is not valid for provider %q", model, provider))
	}
	title := req.Title
	if title == "" {
		title = datatypes.DefaultConversationTitle
	}

	now := time.Now().UTC()
	conv := &datatypes.Conversation{
		ID:         uuid.NewString(),
		UserID:     ownerID,
		Title:      title,
		AIProvider: provider,
		AIModel:    model,
		CreatedAt:  now,
		UpdatedAt:  now,
		// A fresh conversation sorts by creation time until its first
		// message advances the pointer.
		LastMessageAt: now,
	}

	data, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("marshal conversation: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(convKey(ownerID, conv.ID), data)
	})
	if err != nil {
		return nil, fmt.Errorf("store conversation: %w", err)
	}

	s.logger.Info("conversation created",
		"conversation_id", conv.ID,
		"provider", provider,
		"model", model)
	return conv, nil
}

// Get returns the conversation with the given id if ownerID owns it.
// Returns ErrNotFound otherwise; an existing conversation owned by
// someone else is indistinguishable from a missing one.
func (s *ConversationStore) Get(ctx context.Context, ownerID, id string) (*datatypes.Conversation, error) {
	var conv datatypes.Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(convKey(ownerID, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &conv)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return &conv, nil
}

// List returns ownerID's conversations sorted by most recent activity,
// paginated. page starts at 1; a limit outside (0, MaxPageSize] is
// clamped.
func (s *ConversationStore) List(ctx context.Context, ownerID string, page, limit int) ([]datatypes.Conversation, datatypes.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	var all []datatypes.Conversation
	prefix := []byte(convPrefix + ownerID + "/")
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var conv datatypes.Conversation
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &conv)
			})
			if err != nil {
				return err
			}
			all = append(all, conv)
		}
		return nil
	})
	if err != nil {
		return nil, datatypes.Pagination{}, fmt.Errorf("list conversations: %w", err)
	}

	// Activity means messages, not metadata edits. A rename must not
	// float a conversation above one that received a message since.
	sort.Slice(all, func(i, j int) bool {
		return all[i].LastMessageAt.After(all[j].LastMessageAt)
	})

	total := int64(len(all))
	pages := int((total + int64(limit) - 1) / int64(limit))
	if pages == 0 {
		pages = 1
	}

	start := (page - 1) * limit
	if start >= len(all) {
		return []datatypes.Conversation{}, datatypes.Pagination{Current: page, Pages: pages, Total: total}, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], datatypes.Pagination{Current: page, Pages: pages, Total: total}, nil
}

// Rename replaces the conversation's title.
func (s *ConversationStore) Rename(ctx context.Context, ownerID, id, title string) (*datatypes.Conversation, error) {
	return s.mutate(ownerID, id, func(conv *datatypes.Conversation) {
		conv.Title = title
	})
}

// RecordMessage registers a newly appended message on the conversation:
// the message count is incremented and the last-message pointer and
// timestamps are advanced.
//
// # Description
//
// The mutation runs in a serialized transaction retried on commit
// conflict, so two overlapping sends both land and neither increment is
// lost. The returned conversation reflects this mutation; callers use
// its MessageCount to detect the first message of a conversation.
func (s *ConversationStore) RecordMessage(ctx context.Context, ownerID, id, messageID string, at time.Time) (*datatypes.Conversation, error) {
	return s.mutate(ownerID, id, func(conv *datatypes.Conversation) {
		conv.MessageCount++
		conv.LastMessageID = messageID
		conv.LastMessageAt = at
	})
}

// Delete removes the conversation and every message it owns. Deleting a
// missing conversation returns ErrNotFound.
func (s *ConversationStore) Delete(ctx context.Context, ownerID, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(convKey(ownerID, id)); err != nil {
			return err
		}
		if err := txn.Delete(convKey(ownerID, id)); err != nil {
			return err
		}

		prefix := []byte(msgPrefix + id + "/")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	s.logger.Info("conversation deleted", "conversation_id", id)
	return nil
}

// mutate runs a read-modify-write on one conversation with conflict
// retries. fn sees the current record and edits it in place; UpdatedAt
// is advanced automatically.
func (s *ConversationStore) mutate(ownerID, id string, fn func(*datatypes.Conversation)) (*datatypes.Conversation, error) {
	var updated datatypes.Conversation

	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err := s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(convKey(ownerID, id))
			if err != nil {
				return err
			}
			var conv datatypes.Conversation
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &conv)
			}); err != nil {
				return err
			}

			fn(&conv)
			conv.UpdatedAt = time.Now().UTC()

			data, err := json.Marshal(&conv)
			if err != nil {
				return err
			}
			if err := txn.Set(convKey(ownerID, id), data); err != nil {
				return err
			}
			updated = conv
			return nil
		})
		if errors.Is(err, badger.ErrConflict) {
			// Immediate retries under a herd of concurrent sends just
			// collide again; back off with jitter so the herd spreads out.
			backoff := time.Duration(1<<min(attempt, 6)) * time.Millisecond
			time.Sleep(backoff/2 + rand.N(backoff))
			continue
		}
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("update conversation: %w", err)
		}
		return &updated, nil
	}
	return nil, fmt.Errorf("update conversation: %w", badger.ErrConflict)
}

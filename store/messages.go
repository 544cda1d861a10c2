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
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/Git-Shashi/intellichat/datatypes"
)

// MessageStore persists the append-only message log.
//
// # Description
//
// Messages are keyed by conversation and an order key derived from the
// creation timestamp, so a prefix scan returns a conversation's history
// in chronological order without sorting. A process-local sequence
// number breaks ties between messages created in the same nanosecond.
// Messages are never updated in place; the only deletion path is the
// cascade from ConversationStore.Delete.
type MessageStore struct {
	db  *badger.DB
	seq atomic.Uint64
}

// NewMessageStore creates a MessageStore. Panics if db is nil.
func NewMessageStore(db *badger.DB) *MessageStore {
	if db == nil {
		panic("NewMessageStore: db is required")
	}
	return &MessageStore{db: db}
}

// msgKey builds the order-preserving key for one message. The nanosecond
// timestamp is zero-padded so keys sort lexicographically by time.
func msgKey(conversationID string, at time.Time, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d-%06d", msgPrefix, conversationID, at.UnixNano(), seq))
}

// Append stores one message and returns it with its assigned id and
// timestamp filled in.
func (s *MessageStore) Append(ctx context.Context, msg datatypes.ChatMessage) (*datatypes.ChatMessage, error) {
	if msg.ConversationID == "" {
		return nil, fmt.Errorf("append message: conversation id is required")
	}
	if !datatypes.ValidRole(msg.Role) {
		return nil, fmt.Errorf("append message: invalid role %q", msg.Role)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(&msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	key := msgKey(msg.ConversationID, msg.CreatedAt, s.seq.Add(1))
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	return &msg, nil
}

// List returns every message of a conversation in chronological order.
// An unknown conversation yields an empty slice, not an error; the
// caller decides whether the conversation itself must exist.
func (s *MessageStore) List(ctx context.Context, conversationID string) ([]datatypes.ChatMessage, error) {
	messages := []datatypes.ChatMessage{}
	prefix := []byte(msgPrefix + conversationID + "/")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg datatypes.ChatMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

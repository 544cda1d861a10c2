// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Git-Shashi/intellichat/datatypes"
)

// TestMessageStore_AppendAssignsIdentity verifies id and timestamp
// assignment on append.
func TestMessageStore_AppendAssignsIdentity(t *testing.T) {
	t.Parallel()

	s := NewMessageStore(newTestDB(t))
	ctx := context.Background()

	msg, err := s.Append(ctx, datatypes.ChatMessage{
		ConversationID: "conv-1",
		UserID:         "alice",
		Role:           datatypes.RoleUser,
		Content:        "hello",
		AIProvider:     "groq",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
}

// TestMessageStore_AppendValidates verifies the rejected inputs.
func TestMessageStore_AppendValidates(t *testing.T) {
	t.Parallel()

	s := NewMessageStore(newTestDB(t))
	ctx := context.Background()

	_, err := s.Append(ctx, datatypes.ChatMessage{Role: datatypes.RoleUser, Content: "x"})
	assert.Error(t, err, "missing conversation id")

	_, err = s.Append(ctx, datatypes.ChatMessage{ConversationID: "c", Role: "robot", Content: "x"})
	assert.Error(t, err, "invalid role")
}

// TestMessageStore_ListChronological verifies a prefix scan replays the
// log in creation order, even for messages created in the same instant.
func TestMessageStore_ListChronological(t *testing.T) {
	t.Parallel()

	s := NewMessageStore(newTestDB(t))
	ctx := context.Background()

	at := time.Now().UTC()
	for i := 0; i < 10; i++ {
		_, err := s.Append(ctx, datatypes.ChatMessage{
			ConversationID: "conv-1",
			UserID:         "alice",
			Role:           datatypes.RoleUser,
			Content:        fmt.Sprintf("turn %02d", i),
			CreatedAt:      at, // identical timestamps, sequence breaks ties
		})
		require.NoError(t, err)
	}

	msgs, err := s.List(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, msgs, 10)
	for i, msg := range msgs {
		assert.Equal(t, fmt.Sprintf("turn %02d", i), msg.Content)
	}
}

// TestMessageStore_ListIsolatedPerConversation verifies no cross-talk
// between conversation logs.
func TestMessageStore_ListIsolatedPerConversation(t *testing.T) {
	t.Parallel()

	s := NewMessageStore(newTestDB(t))
	ctx := context.Background()

	for _, conv := range []string{"conv-a", "conv-b"} {
		_, err := s.Append(ctx, datatypes.ChatMessage{
			ConversationID: conv,
			UserID:         "alice",
			Role:           datatypes.RoleUser,
			Content:        "in " + conv,
		})
		require.NoError(t, err)
	}

	msgs, err := s.List(ctx, "conv-a")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "in conv-a", msgs[0].Content)

	msgs, err = s.List(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

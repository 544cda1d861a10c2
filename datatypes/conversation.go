// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the persisted entities for the conversation flow and
// the request types for the conversation endpoints.
package datatypes

import "time"

// DefaultConversationTitle is the placeholder title a conversation carries
// until its first user message derives a real one.
const DefaultConversationTitle = "New Conversation"

// Conversation is the durable metadata record for one chat thread.
//
// # Description
//
// A conversation pins the AI provider and model for its whole lifetime:
// AIProvider and AIModel are fixed at creation and every generation on the
// conversation uses them, regardless of what the client asks for on a given
// send. AIModel is always a member of AIProvider's model list; the store
// enforces this at write time so mixed provider/model state can never be
// persisted.
//
// # Fields
//
//   - ID: Opaque unique id (UUID v4).
//   - UserID: Owner, immutable after creation.
//   - Title: Display string; placeholder until derived from the first
//     user message, renamable afterwards.
//   - AIProvider: Provider name, fixed at creation.
//   - AIModel: Model id, valid for AIProvider.
//   - MessageCount: Incremented once per stored message (user and
//     assistant counted separately).
//   - LastMessageID: Id of the most recently stored message, if any.
//   - LastMessageAt: Updated whenever a message is appended.
type Conversation struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Title         string    `json:"title"`
	AIProvider    string    `json:"aiProvider"`
	AIModel       string    `json:"aiModel"`
	MessageCount  int64     `json:"messageCount"`
	LastMessageID string    `json:"lastMessageId,omitempty"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ChatMessage is one durable turn in a conversation's append-only log.
//
// # Description
//
// Messages are created by the orchestration flow (one per user turn, one
// per assistant turn) and are never edited in place; they are bulk-deleted
// only when the owning conversation is deleted. CreatedAt is the ordering
// key within a conversation.
type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	AIProvider     string    `json:"aiProvider"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CreateConversationRequest is the body for POST /v1/conversations.
// All fields are optional; defaults are applied by the store.
type CreateConversationRequest struct {
	Title      string `json:"title"`
	AIProvider string `json:"aiProvider" validate:"omitempty,oneof=groq gemini"`
	AIModel    string `json:"aiModel"`
}

// Validate validates the CreateConversationRequest fields.
func (r *CreateConversationRequest) Validate() error {
	return chatValidate.Struct(r)
}

// SendMessageRequest is the body for POST /v1/conversations/:id/messages,
// the synchronous (non-streaming) conversation send.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,maxbytes"`
}

// Validate validates the SendMessageRequest fields.
func (r *SendMessageRequest) Validate() error {
	return chatValidate.Struct(r)
}

// RenameConversationRequest is the body for PATCH /v1/conversations/:id.
type RenameConversationRequest struct {
	Title string `json:"title" validate:"required"`
}

// Validate validates the RenameConversationRequest fields.
func (r *RenameConversationRequest) Validate() error {
	return chatValidate.Struct(r)
}

// Pagination is the envelope returned alongside conversation listings.
type Pagination struct {
	Current int   `json:"current"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
}

// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Git-Shashi/intellichat/datatypes"
	"github.com/Git-Shashi/intellichat/middleware"
	"github.com/Git-Shashi/intellichat/services/ai"
	"github.com/Git-Shashi/intellichat/store"
)

// ConversationHandler serves the conversation CRUD endpoints and the
// synchronous conversation send path.
type ConversationHandler struct {
	conversations *store.ConversationStore
	messages      *store.MessageStore
	orchestrator  *ai.Orchestrator
	logger        *slog.Logger
}

// NewConversationHandler creates a ConversationHandler. Panics on nil
// dependencies.
func NewConversationHandler(conversations *store.ConversationStore, messages *store.MessageStore, orchestrator *ai.Orchestrator) *ConversationHandler {
	if conversations == nil {
		panic("NewConversationHandler: conversations is required")
	}
	if messages == nil {
		panic("NewConversationHandler: messages is required")
	}
	if orchestrator == nil {
		panic("NewConversationHandler: orchestrator is required")
	}
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		orchestrator:  orchestrator,
		logger:        slog.Default().With("component", "conversation_handler"),
	}
}

// Create handles POST /v1/conversations.
func (h *ConversationHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return
	}

	var req datatypes.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, ai.NewValidationError("body", "invalid JSON payload"))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, ai.NewValidationError("", err.Error()))
		return
	}

	conv, err := h.conversations.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": conv})
}

// List handles GET /v1/conversations with page/limit query parameters.
func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	convs, pagination, err := h.conversations.List(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"conversations": convs,
			"pagination":    pagination,
		},
	})
}

// Get handles GET /v1/conversations/:id, returning the conversation and
// its full message history in chronological order.
func (h *ConversationHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return
	}
	id := c.Param("id")

	conv, err := h.conversations.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	msgs, err := h.messages.List(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"conversation": conv,
			"messages":     msgs,
		},
	})
}

// Rename handles PATCH /v1/conversations/:id.
func (h *ConversationHandler) Rename(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return
	}

	var req datatypes.RenameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, ai.NewValidationError("body", "invalid JSON payload"))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, ai.NewValidationError("", err.Error()))
		return
	}

	conv, err := h.conversations.Rename(c.Request.Context(), userID, c.Param("id"), req.Title)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": conv})
}

// Delete handles DELETE /v1/conversations/:id. Deletion cascades to the
// conversation's messages; deleting a missing or foreign conversation
// reports not found rather than silently succeeding.
func (h *ConversationHandler) Delete(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return
	}

	if err := h.conversations.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"deleted": true}})
}

// SendMessage handles POST /v1/conversations/:id/messages, the
// synchronous conversation turn.
//
// # Description
//
// Step 1: Load the conversation; its pinned provider and model are used
// regardless of anything in the request.
// Step 2: Persist the user turn, update the conversation counters, and
// derive a title if this was the first message.
// Step 3: Run the generation with the stored history plus the new turn.
// Step 4: Persist the assistant turn and update counters again. A
// generation failure after step 2 leaves the user turn stored; no
// assistant message is written.
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return
	}
	convID := c.Param("id")

	var req datatypes.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, ai.NewValidationError("body", "invalid JSON payload"))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, ai.NewValidationError("", err.Error()))
		return
	}

	ctx := c.Request.Context()
	conv, err := h.conversations.Get(ctx, userID, convID)
	if err != nil {
		respondError(c, err)
		return
	}

	history, err := h.messages.List(ctx, convID)
	if err != nil {
		respondError(c, err)
		return
	}

	userMsg, err := h.messages.Append(ctx, datatypes.ChatMessage{
		ConversationID: convID,
		UserID:         userID,
		Role:           datatypes.RoleUser,
		Content:        req.Content,
		AIProvider:     conv.AIProvider,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	conv, err = h.conversations.RecordMessage(ctx, userID, convID, userMsg.ID, userMsg.CreatedAt)
	if err != nil {
		respondError(c, err)
		return
	}

	var newTitle string
	if conv.MessageCount == 1 {
		newTitle = DeriveTitle(req.Content)
		if conv, err = h.conversations.Rename(ctx, userID, convID, newTitle); err != nil {
			h.logger.Warn("title update failed", "conversation_id", convID, "error", err)
			newTitle = ""
		}
	}

	messages := make([]datatypes.Message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, datatypes.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, datatypes.Message{Role: datatypes.RoleUser, Content: req.Content})

	resp, err := h.orchestrator.Complete(ctx, datatypes.ChatRequest{
		Provider: conv.AIProvider,
		Messages: messages,
		Options:  datatypes.ChatOptions{Model: conv.AIModel},
	})
	if err != nil {
		respondError(c, err)
		return
	}

	aiMsg, err := h.messages.Append(ctx, datatypes.ChatMessage{
		ConversationID: convID,
		UserID:         userID,
		Role:           datatypes.RoleAssistant,
		Content:        resp.Content,
		AIProvider:     conv.AIProvider,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if conv, err = h.conversations.RecordMessage(ctx, userID, convID, aiMsg.ID, aiMsg.CreatedAt); err != nil {
		respondError(c, err)
		return
	}

	data := gin.H{
		"conversation":     conv,
		"userMessage":      userMsg,
		"assistantMessage": aiMsg,
		"response":         resp,
	}
	if newTitle != "" {
		data["title"] = newTitle
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

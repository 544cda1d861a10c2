// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Git-Shashi/intellichat/datatypes"
	"github.com/Git-Shashi/intellichat/middleware"
	"github.com/Git-Shashi/intellichat/observability"
	"github.com/Git-Shashi/intellichat/services/ai"
	"github.com/Git-Shashi/intellichat/store"
)

// ChatWSHandler serves the live session gateway.
//
// # Description
//
// One WebSocket connection carries any number of generations, each
// correlated by a client-chosen message id. Every generation walks a
// fixed sequence: validate, persist the user turn, stream fragments,
// persist the assistant turn. Validation failures mutate nothing;
// streaming failures leave the user turn stored but never persist a
// partial assistant turn; a per-message failure terminates only that
// message's flow, the connection stays usable.
//
// # Thread Safety
//
// Each generation runs on its own goroutine. All writes to the socket
// go through the session's write mutex, so events from concurrent
// generations interleave at frame granularity but never corrupt.
type ChatWSHandler struct {
	orchestrator  *ai.Orchestrator
	conversations *store.ConversationStore
	messages      *store.MessageStore
	metrics       *observability.ChatMetrics
	logger        *slog.Logger
	upgrader      websocket.Upgrader
}

// NewChatWSHandler creates a ChatWSHandler. Panics on nil dependencies.
func NewChatWSHandler(orchestrator *ai.Orchestrator, conversations *store.ConversationStore, messages *store.MessageStore, metrics *observability.ChatMetrics) *ChatWSHandler {
	if orchestrator == nil {
		panic("NewChatWSHandler: orchestrator is required")
	}
	if conversations == nil {
		panic("NewChatWSHandler: conversations is required")
	}
	if messages == nil {
		panic("NewChatWSHandler: messages is required")
	}
	if metrics == nil {
		panic("NewChatWSHandler: metrics is required")
	}
	return &ChatWSHandler{
		orchestrator:  orchestrator,
		conversations: conversations,
		messages:      messages,
		metrics:       metrics,
		logger:        slog.Default().With("component", "chat_ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The API is served to browser clients from other origins;
			// auth happens in middleware before the upgrade.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// generation tracks one in-flight streamed request on a session.
type generation struct {
	cancel  context.CancelFunc
	stopped atomic.Bool
}

// wsSession is the per-connection state.
type wsSession struct {
	conn    *websocket.Conn
	userID  string
	writeMu sync.Mutex

	mu     sync.Mutex
	active map[string]*generation
}

// send writes one event envelope to the socket. Serialized by the
// write mutex; gorilla connections allow only one concurrent writer.
func (s *wsSession) send(event string, data any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(datatypes.Envelope{Event: event, Data: data})
}

func (s *wsSession) register(messageID string, g *generation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[messageID] = g
}

func (s *wsSession) unregister(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, messageID)
}

// stop flags the generation as stopped and cancels it. Returns false if
// no generation with that id is in flight.
func (s *wsSession) stop(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.active[messageID]
	if !ok {
		return false
	}
	g.stopped.Store(true)
	g.cancel()
	return true
}

// cancelAll aborts every in-flight generation. Used at connection
// teardown.
func (s *wsSession) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.active {
		g.cancel()
	}
}

// HandleConnection handles GET /v1/ws/chat.
//
// # Description
//
// Upgrades the request and runs the read loop until the client
// disconnects. chat:message events spawn a generation goroutine;
// chat:stop events cancel one by message id. A malformed frame draws a
// chat:error but keeps the connection open.
func (h *ChatWSHandler) HandleConnection(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.metrics.ActiveConnections.Inc()
	defer h.metrics.ActiveConnections.Dec()

	session := &wsSession{
		conn:   conn,
		userID: userID,
		active: make(map[string]*generation),
	}
	defer func() {
		session.cancelAll()
		conn.Close()
	}()

	h.logger.Info("websocket connected", "user_id", userID)

	for {
		var envelope struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&envelope); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed", "user_id", userID, "error", err)
			}
			return
		}

		switch envelope.Event {
		case datatypes.EventChatMessage:
			var event datatypes.ChatMessageEvent
			if err := json.Unmarshal(envelope.Data, &event); err != nil {
				_ = session.send(datatypes.EventChatError, datatypes.ChatErrorEvent{
					Error: "invalid chat:message payload",
				})
				continue
			}
			go h.runGeneration(session, event)

		case datatypes.EventChatStop:
			var event datatypes.ChatStopEvent
			if err := json.Unmarshal(envelope.Data, &event); err != nil || event.MessageID == "" {
				_ = session.send(datatypes.EventChatError, datatypes.ChatErrorEvent{
					Error: "invalid chat:stop payload",
				})
				continue
			}
			// The terminal chat:stopped event comes from the generation
			// goroutine, after the last forwarded chunk.
			session.stop(event.MessageID)

		default:
			_ = session.send(datatypes.EventChatError, datatypes.ChatErrorEvent{
				Error: "unknown event: " + envelope.Event,
			})
		}
	}
}

// runGeneration drives one chat:message request through its lifecycle.
func (h *ChatWSHandler) runGeneration(session *wsSession, event datatypes.ChatMessageEvent) {
	// Validating. No state mutation on any failure here.
	if err := event.Validate(); err != nil {
		_ = session.send(datatypes.EventChatError, datatypes.ChatErrorEvent{
			MessageID: event.MessageID,
			Error:     "validation failed: " + err.Error(),
		})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := &generation{cancel: cancel}
	session.register(event.MessageID, g)
	defer session.unregister(event.MessageID)

	conv, err := h.conversations.Get(ctx, session.userID, event.ConversationID)
	if err != nil {
		h.sendError(session, event.MessageID, "ws_validate", err)
		return
	}

	// Persisting-User-Message.
	userContent := event.UserMessageContent
	if userContent == "" {
		userContent = lastUserContent(event.Messages)
	}
	userMsg, err := h.messages.Append(ctx, datatypes.ChatMessage{
		ConversationID: conv.ID,
		UserID:         session.userID,
		Role:           datatypes.RoleUser,
		Content:        userContent,
		AIProvider:     conv.AIProvider,
	})
	if err != nil {
		h.sendError(session, event.MessageID, "ws_persist_user", err)
		return
	}
	conv, err = h.conversations.RecordMessage(ctx, session.userID, conv.ID, userMsg.ID, userMsg.CreatedAt)
	if err != nil {
		h.sendError(session, event.MessageID, "ws_persist_user", err)
		return
	}
	if conv.MessageCount == 1 {
		title := DeriveTitle(userContent)
		if _, err := h.conversations.Rename(ctx, session.userID, conv.ID, title); err != nil {
			h.logger.Warn("title update failed", "conversation_id", conv.ID, "error", err)
		} else {
			_ = session.send(datatypes.EventTitleUpdated, datatypes.TitleUpdatedEvent{
				ConversationID: conv.ID,
				Title:          title,
			})
		}
	}

	_ = session.send(datatypes.EventChatStart, datatypes.ChatStartEvent{
		MessageID:     event.MessageID,
		Provider:      conv.AIProvider,
		Model:         conv.AIModel,
		UserMessageID: userMsg.ID,
		Timestamp:     time.Now().UTC(),
	})

	// Streaming. The conversation's pinned provider and model always
	// win over anything the client sent for this call.
	start := time.Now()
	stream, info, err := h.orchestrator.Stream(ctx, datatypes.ChatRequest{
		Provider: conv.AIProvider,
		Messages: event.Messages,
		Options: datatypes.ChatOptions{
			Model:       conv.AIModel,
			Temperature: event.Temperature,
			MaxTokens:   event.MaxTokens,
		},
	})
	if err != nil {
		h.sendError(session, event.MessageID, "ws_stream", err)
		return
	}
	defer stream.Close()

	h.metrics.ActiveStreams.WithLabelValues("ws").Inc()
	defer h.metrics.ActiveStreams.WithLabelValues("ws").Dec()

	var accumulator strings.Builder
	chunkIndex := 0
	for {
		fragment, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if g.stopped.Load() {
				_ = session.send(datatypes.EventChatStopped, datatypes.ChatStoppedEvent{
					MessageID: event.MessageID,
				})
				return
			}
			h.sendError(session, event.MessageID, "ws_stream", err)
			return
		}

		// A stop that landed while this fragment was in flight discards
		// it; nothing reaches the client after a stop.
		if g.stopped.Load() {
			_ = session.send(datatypes.EventChatStopped, datatypes.ChatStoppedEvent{
				MessageID: event.MessageID,
			})
			return
		}

		accumulator.WriteString(fragment)
		h.metrics.ChunksTotal.WithLabelValues(info.Provider).Inc()
		_ = session.send(datatypes.EventChatChunk, datatypes.ChatChunkEvent{
			MessageID:  event.MessageID,
			Content:    fragment,
			Provider:   info.Provider,
			Model:      info.Model,
			ChunkIndex: chunkIndex,
		})
		chunkIndex++
	}

	// The generation is complete; take it off the stop surface so a
	// late chat:stop cannot cancel the persist below.
	session.unregister(event.MessageID)
	if g.stopped.Load() {
		_ = session.send(datatypes.EventChatStopped, datatypes.ChatStoppedEvent{
			MessageID: event.MessageID,
		})
		return
	}

	// Persisting-Assistant-Message. A failure here still surfaces to
	// the client even though generation succeeded; the durable record
	// is part of the contract. The persist runs on its own context:
	// the generation context may already be cancelled by a stop that
	// lost the race above.
	persistCtx := context.Background()
	aiMsg, err := h.messages.Append(persistCtx, datatypes.ChatMessage{
		ConversationID: conv.ID,
		UserID:         session.userID,
		Role:           datatypes.RoleAssistant,
		Content:        accumulator.String(),
		AIProvider:     conv.AIProvider,
	})
	if err != nil {
		h.sendError(session, event.MessageID, "ws_persist_assistant", err)
		return
	}
	if _, err := h.conversations.RecordMessage(persistCtx, session.userID, conv.ID, aiMsg.ID, aiMsg.CreatedAt); err != nil {
		h.sendError(session, event.MessageID, "ws_persist_assistant", err)
		return
	}

	h.metrics.RequestsTotal.WithLabelValues("ws", info.Provider, "success").Inc()
	h.metrics.StreamDurationSeconds.WithLabelValues("ws", info.Provider).
		Observe(time.Since(start).Seconds())

	_ = session.send(datatypes.EventChatComplete, datatypes.ChatCompleteEvent{
		MessageID:     event.MessageID,
		FullContent:   accumulator.String(),
		ChunkCount:    chunkIndex,
		Duration:      time.Since(start).Milliseconds(),
		AIMessageID:   aiMsg.ID,
		UserMessageID: userMsg.ID,
		Timestamp:     time.Now().UTC(),
	})
}

// sendError emits a chat:error for one message id and records it.
func (h *ChatWSHandler) sendError(session *wsSession, messageID, surface string, err error) {
	h.metrics.ErrorsTotal.WithLabelValues(surface, errorKind(err)).Inc()
	h.logger.Error("generation failed",
		"message_id", messageID,
		"surface", surface,
		"error", err)
	_ = session.send(datatypes.EventChatError, datatypes.ChatErrorEvent{
		MessageID: messageID,
		Error:     err.Error(),
	})
}

// lastUserContent returns the content of the last user-role message, or
// the last message of any role when no user turn exists.
func lastUserContent(messages []datatypes.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == datatypes.RoleUser {
			return messages[i].Content
		}
	}
	if len(messages) > 0 {
		return messages[len(messages)-1].Content
	}
	return ""
}

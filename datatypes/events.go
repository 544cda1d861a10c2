// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the wire payloads for the live session gateway
// (WebSocket) and the chunk framing for the streaming HTTP responses.
package datatypes

import "time"

// ======  Live session event names  ======

// Client-to-server event names.
const (
	EventChatMessage = "chat:message"
	EventChatStop    = "chat:stop"
)

// Server-to-client event names.
const (
	EventChatStart    = "chat:start"
	EventChatChunk    = "chat:chunk"
	EventChatComplete = "chat:complete"
	EventChatError    = "chat:error"
	EventChatStopped  = "chat:stopped"
	EventTitleUpdated = "conversation:title-updated"
)

// ======  Client payloads  ======

// ChatMessageEvent is the payload of a chat:message client event.
//
// # Description
//
// One ChatMessageEvent starts one streamed generation. MessageID is a
// client-chosen correlation id echoed on every server event for this
// generation, so a client can run several sessions over one connection
// and route chunks to the right one. The generation is always bound to
// a conversation: the provider and model come from the conversation
// record (Provider and Model here are accepted but never override the
// pin) and UserMessageContent is stored as the user turn.
type ChatMessageEvent struct {
	MessageID          string    `json:"messageId" validate:"required"`
	ConversationID     string    `json:"conversationId" validate:"required"`
	Messages           []Message `json:"messages" validate:"required,min=1,max=100,dive"`
	Provider           string    `json:"provider,omitempty"`
	Model              string    `json:"model,omitempty"`
	Temperature        *float32  `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens          *int      `json:"maxTokens,omitempty" validate:"omitempty,gt=0"`
	UserMessageContent string    `json:"userMessageContent,omitempty" validate:"omitempty,maxbytes"`
}

// Validate validates the ChatMessageEvent fields.
func (e *ChatMessageEvent) Validate() error {
	return chatValidate.Struct(e)
}

// ChatStopEvent is the payload of a chat:stop client event. MessageID
// names the in-flight generation to cancel.
type ChatStopEvent struct {
	MessageID string `json:"messageId"`
}

// ======  Server payloads  ======

// Envelope is the frame every server event is sent in. Data holds the
// event-specific payload.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// ChatStartEvent acknowledges that a generation entered the streaming
// phase. It is sent exactly once per generation, before any chunk.
// UserMessageID is set only when the generation is bound to a
// conversation and the user turn was already stored.
type ChatStartEvent struct {
	MessageID     string    `json:"messageId"`
	Provider      string    `json:"provider"`
	Model         string    `json:"model"`
	UserMessageID string    `json:"userMessageId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ChatChunkEvent carries one incremental fragment of assistant output.
// ChunkIndex starts at 0 and increases by 1 per chunk with no gaps.
type ChatChunkEvent struct {
	MessageID  string `json:"messageId"`
	Content    string `json:"content"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	ChunkIndex int    `json:"chunkIndex"`
}

// ChatCompleteEvent terminates a successful generation.
//
// # Fields
//
//   - FullContent: Concatenation of every chunk sent, in order.
//   - ChunkCount: Number of chunk events that preceded this one.
//   - Duration: Wall time of the generation in milliseconds.
//   - AIMessageID / UserMessageID: Ids of the stored turns, set only
//     when the generation was bound to a conversation.
type ChatCompleteEvent struct {
	MessageID     string    `json:"messageId"`
	FullContent   string    `json:"fullContent"`
	ChunkCount    int       `json:"chunkCount"`
	Duration      int64     `json:"duration"`
	AIMessageID   string    `json:"aiMessageId,omitempty"`
	UserMessageID string    `json:"userMessageId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ChatErrorEvent terminates a failed generation. At most one terminal
// event is sent per generation; after an error no further chunks follow.
type ChatErrorEvent struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

// ChatStoppedEvent terminates a generation cancelled by chat:stop.
type ChatStoppedEvent struct {
	MessageID string `json:"messageId"`
}

// TitleUpdatedEvent announces that a conversation's placeholder title was
// replaced with one derived from its first user message.
type TitleUpdatedEvent struct {
	ConversationID string `json:"conversationId"`
	Title          string `json:"title"`
}

// ======  HTTP streaming chunk framing  ======

// Stream marker types used by the SSE and NDJSON framings. Content
// frames carry no type marker.
const (
	StreamChunkEnd   = "end"
	StreamChunkError = "error"
)

// StreamChunk is one frame of a streamed HTTP response. Content frames
// carry Content plus the serving model and provider; the end marker
// carries Message; the error marker carries Error. The end or error
// frame is always the last one written, and exactly one of them is.
type StreamChunk struct {
	Type     string `json:"type,omitempty"`
	Content  string `json:"content,omitempty"`
	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

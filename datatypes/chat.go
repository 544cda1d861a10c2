// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains request and response types for the request/response
// AI endpoints (/v1/ai/*). For the live-session wire events, see events.go.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants for Security Compliance
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single message content.
	// Oversized payloads are rejected before any vendor call.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxMessagesPerRequest is the maximum number of messages in a request.
	MaxMessagesPerRequest = 100
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()

	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes validates that a string field does not exceed
// MaxMessageContentBytes. Checks byte length (not rune count) to prevent
// memory exhaustion with large payloads.
func validateMaxBytes(fl validator.FieldLevel) bool {
	content := fl.Field().String()
	return len(content) <= MaxMessageContentBytes
}

// =============================================================================
// AI Chat Request Types
// =============================================================================

// ChatOptions carries the generation options recognized by every provider.
//
// # Description
//
// All fields are optional; zero values mean the provider default
// (temperature 0.7, max tokens 1000, the provider's default model).
// Unrecognized JSON keys sent by clients are ignored by the decoder,
// never treated as errors.
//
// # Fields
//
//   - Model: Overrides the provider's default model.
//   - Temperature: Sampling randomness, must be within [0, 2] when set.
//   - MaxTokens: Output length cap.
//   - Stream: Whether the provider call streams internally.
type ChatOptions struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float32 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int     `json:"maxTokens,omitempty" validate:"omitempty,gt=0"`
	Stream      bool     `json:"stream,omitempty"`
}

// ChatRequest represents a request/response generation request body.
//
// # Description
//
// ChatRequest is the body for POST /v1/ai/chat and POST /v1/ai/chat/stream.
// It names a provider explicitly (unlike the conversation flow, which pins
// the provider at conversation creation) and carries the full message
// history to send. Nothing on this path is persisted.
//
// # Validation
//
// Uses go-playground/validator:
//   - Provider: required
//   - Messages: required, 1-100 elements, each element validated
//   - Messages[].Role: one of system/user/assistant
//   - Messages[].Content: required, max 32KB (custom "maxbytes" validator)
//
// # Examples
//
//	req := ChatRequest{
//	    Provider: "groq",
//	    Messages: []Message{{Role: "user", Content: "Hello"}},
//	}
type ChatRequest struct {
	Provider string      `json:"provider" validate:"required"`
	Messages []Message   `json:"messages" validate:"required,min=1,max=100,dive"`
	Options  ChatOptions `json:"options"`
}

// Validate validates the ChatRequest fields.
//
// # Outputs
//
//   - error: Non-nil if validation failed, with details about which field.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// TestProviderRequest is the body for POST /v1/ai/test.
type TestProviderRequest struct {
	Provider string `json:"provider" validate:"required"`
}

// Validate validates the TestProviderRequest fields.
func (r *TestProviderRequest) Validate() error {
	return chatValidate.Struct(r)
}

// =============================================================================
// AI Chat Response Types
// =============================================================================

// ChatResponse is the payload returned by a successful completion.
//
// # Fields
//
//   - Content: The generated assistant text.
//   - Model: The model that produced it.
//   - Provider: The provider that served the call.
//   - Usage: Optional token usage statistics (not all vendors report it).
type ChatResponse struct {
	Content  string      `json:"content"`
	Model    string      `json:"model"`
	Provider string      `json:"provider"`
	Usage    *TokenUsage `json:"usage,omitempty"`
}

// ProviderInfo describes one provider in the GET /v1/ai/providers payload.
type ProviderInfo struct {
	Name        string   `json:"name"`
	Models      []string `json:"models"`
	Description string   `json:"description"`
}

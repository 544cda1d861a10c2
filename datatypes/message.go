// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the chat service.
//
// This file contains the message primitives shared by the provider
// pipeline, the gateways, and the durable stores. Request/response types
// for the HTTP endpoints live in chat.go, live-session wire events in
// events.go, and persisted entities in conversation.go.
package datatypes

// Message roles accepted everywhere a conversation history appears.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a conversation history as sent to an AI
// provider. Role must be one of RoleSystem, RoleUser, RoleAssistant.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required,maxbytes"`
}

// ValidRole reports whether role is one of the three accepted values.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// TokenUsage contains token consumption statistics reported by a provider.
//
// # Fields
//
//   - InputTokens: Number of tokens in the prompt/messages
//   - OutputTokens: Number of tokens in the response
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

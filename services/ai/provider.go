// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ai implements the provider adapters, the provider registry,
// and the chat orchestrator that the HTTP and WebSocket gateways call
// into.
//
// The package exposes a small closed set of providers (Groq and Gemini).
// Each adapter normalizes its vendor's API behind the Provider interface
// so the gateways never see vendor payloads, and streaming is delivered
// as a pull iterator (FragmentStream) the consumer drains at its own
// pace.
package ai

import (
	"context"

	"github.com/Git-Shashi/intellichat/datatypes"
)

// Known provider names. The set is closed; anything else is rejected
// with ErrUnsupportedProvider before any network call.
const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

// ProviderNames returns the closed set of supported provider names.
func ProviderNames() []string {
	return []string{ProviderGroq, ProviderGemini}
}

// SupportedProvider reports whether name is a known provider.
func SupportedProvider(name string) bool {
	return name == ProviderGroq || name == ProviderGemini
}

// DefaultModelFor returns the default model of the named provider, or
// false for an unknown provider. It needs no credential, so the stores
// use it for write-time checks.
func DefaultModelFor(name string) (string, bool) {
	switch name {
	case ProviderGroq:
		return groqDefaultModel, true
	case ProviderGemini:
		return geminiDefaultModel, true
	}
	return "", false
}

// ModelsFor returns a copy of the model list of the named provider, or
// nil for an unknown provider.
func ModelsFor(name string) []string {
	var src []string
	switch name {
	case ProviderGroq:
		src = groqModels
	case ProviderGemini:
		src = geminiModels
	default:
		return nil
	}
	models := make([]string, len(src))
	copy(models, src)
	return models
}

// ValidModel reports whether model belongs to the named provider's
// model list.
func ValidModel(provider, model string) bool {
	for _, m := range ModelsFor(provider) {
		if m == model {
			return true
		}
	}
	return false
}

// CompletionRequest is the normalized request every adapter receives.
// Model, Temperature and MaxTokens are already defaulted by the caller;
// adapters never apply defaults themselves.
type CompletionRequest struct {
	Messages    []datatypes.Message
	Model       string
	Temperature float32
	MaxTokens   int
}

// Provider is a single AI backend normalized behind a uniform surface.
//
// # Description
//
// Implementations are safe for concurrent use and hold no per-request
// state. SendMessage blocks until the full completion is available;
// StreamMessage returns a FragmentStream the caller must drain and
// Close. Both honor ctx cancellation.
type Provider interface {
	// Name returns the provider's logical name ("groq" or "gemini").
	Name() string

	// SendMessage performs a blocking completion and returns the full
	// assistant text with usage statistics when the vendor reports them.
	SendMessage(ctx context.Context, req CompletionRequest) (*datatypes.ChatResponse, error)

	// StreamMessage starts a streamed completion. The returned stream
	// yields ordered fragments; the caller owns it and must Close it.
	StreamMessage(ctx context.Context, req CompletionRequest) (FragmentStream, error)

	// AvailableModels returns the model ids this provider accepts.
	AvailableModels() []string

	// DefaultModel returns the model used when a request names none.
	DefaultModel() string

	// SupportsModel reports whether model is in AvailableModels.
	SupportsModel(model string) bool
}

// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Git-Shashi/intellichat/datatypes"
)

// Generation defaults applied when a request leaves an option unset.
const (
	DefaultTemperature float32 = 0.7
	DefaultMaxTokens           = 1000
)

// CredentialSource resolves the API credential for a provider. The
// config package provides the environment-backed implementation.
type CredentialSource interface {
	// Credential returns the credential for the named provider and
	// whether one is configured.
	Credential(provider string) (string, bool)
}

// StreamInfo describes the resolved target of a streamed generation, so
// gateways can announce the provider and model before the first chunk.
type StreamInfo struct {
	Provider string
	Model    string
}

// Orchestrator validates chat requests, resolves providers, and runs
// generations. It is the single entry point both gateways call; neither
// ever touches a Provider directly.
//
// # Assumptions
//
//   - Requests have passed JSON decoding but not semantic validation.
//   - The registry and credential source outlive the orchestrator.
type Orchestrator struct {
	registry *Registry
	creds    CredentialSource
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewOrchestrator creates an Orchestrator.
//
// # Inputs
//
//   - registry: Provider registry. Must not be nil.
//   - creds: Credential source. Must not be nil.
//
// # Outputs
//
//   - *Orchestrator: The orchestrator. Panics on nil dependencies.
func NewOrchestrator(registry *Registry, creds CredentialSource) *Orchestrator {
	if registry == nil {
		panic("NewOrchestrator: registry is required")
	}
	if creds == nil {
		panic("NewOrchestrator: creds is required")
	}
	return &Orchestrator{
		registry: registry,
		creds:    creds,
		logger:   slog.Default().With("component", "orchestrator"),
		tracer:   otel.Tracer("intellichat/services/ai"),
	}
}

// Complete runs a blocking generation and returns the full response.
//
// # Description
//
// The request is validated before any resolution happens, so a request
// that is both malformed and names an unknown provider reports the
// validation failure. Option defaults (temperature 0.7, max tokens
// 1000, the provider's default model) are applied here; adapters never
// default anything.
func (o *Orchestrator) Complete(ctx context.Context, req datatypes.ChatRequest) (*datatypes.ChatResponse, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.complete",
		trace.WithAttributes(attribute.String("ai.provider", req.Provider)))
	defer span.End()

	provider, completion, err := o.resolve(req.Provider, req.Messages, req.Options)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("ai.model", completion.Model))

	start := time.Now()
	resp, err := provider.SendMessage(ctx, completion)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		o.logger.Error("completion failed",
			"provider", provider.Name(),
			"model", completion.Model,
			"error", err)
		return nil, err
	}

	o.logger.Info("completion finished",
		"provider", provider.Name(),
		"model", completion.Model,
		"duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

// Stream starts a streamed generation. The caller owns the returned
// stream and must drain or Close it; StreamInfo is valid even when the
// vendor later fails mid-stream.
func (o *Orchestrator) Stream(ctx context.Context, req datatypes.ChatRequest) (FragmentStream, *StreamInfo, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.stream",
		trace.WithAttributes(attribute.String("ai.provider", req.Provider)))
	defer span.End()

	provider, completion, err := o.resolve(req.Provider, req.Messages, req.Options)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	span.SetAttributes(attribute.String("ai.model", completion.Model))

	stream, err := provider.StreamMessage(ctx, completion)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		o.logger.Error("stream start failed",
			"provider", provider.Name(),
			"model", completion.Model,
			"error", err)
		return nil, nil, err
	}

	return stream, &StreamInfo{Provider: provider.Name(), Model: completion.Model}, nil
}

// TestProvider verifies that the named provider is reachable with the
// configured credential by running a one-word generation.
func (o *Orchestrator) TestProvider(ctx context.Context, name string) (*datatypes.ChatResponse, error) {
	temperature := float32(0.1)
	maxTokens := 50
	return o.Complete(ctx, datatypes.ChatRequest{
		Provider: name,
		Messages: []datatypes.Message{
			{Role: datatypes.RoleUser, Content: "Say hello in one word."},
		},
		Options: datatypes.ChatOptions{Temperature: &temperature, MaxTokens: &maxTokens},
	})
}

// Providers describes the closed provider set for discovery endpoints.
// The listing is static; it does not probe credentials or reachability.
func (o *Orchestrator) Providers() []datatypes.ProviderInfo {
	infos := make([]datatypes.ProviderInfo, 0, 2)
	for _, name := range ProviderNames() {
		infos = append(infos, datatypes.ProviderInfo{
			Name:        name,
			Models:      ModelsFor(name),
			Description: describeProvider(name),
		})
	}
	return infos
}

// resolve validates, defaults, and maps a request onto a ready adapter.
func (o *Orchestrator) resolve(providerName string, messages []datatypes.Message, opts datatypes.ChatOptions) (Provider, CompletionRequest, error) {
	req := datatypes.ChatRequest{Provider: providerName, Messages: messages, Options: opts}
	if err := req.Validate(); err != nil {
		return nil, CompletionRequest{}, NewValidationError("", err.Error())
	}
	if !SupportedProvider(providerName) {
		return nil, CompletionRequest{}, fmt.Errorf("%w: %q", ErrUnsupportedProvider, providerName)
	}

	apiKey, ok := o.creds.Credential(providerName)
	if !ok {
		return nil, CompletionRequest{}, fmt.Errorf("%w: %s", ErrCredentialMissing, providerName)
	}

	provider, err := o.registry.Provider(providerName, apiKey)
	if err != nil {
		return nil, CompletionRequest{}, err
	}

	completion := CompletionRequest{
		Messages:    messages,
		Model:       opts.Model,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	if completion.Model == "" {
		completion.Model = provider.DefaultModel()
	}
	if opts.Temperature != nil {
		completion.Temperature = *opts.Temperature
	}
	if opts.MaxTokens != nil {
		completion.MaxTokens = *opts.MaxTokens
	}

	return provider, completion, nil
}

func describeProvider(name string) string {
	switch name {
	case ProviderGroq:
		return "Fast inference with Llama, Gemma and Mixtral models"
	case ProviderGemini:
		return "Google Gemini models"
	}
	return ""
}

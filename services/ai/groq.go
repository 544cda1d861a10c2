// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Git-Shashi/intellichat/datatypes"
)

// GroqBaseURL is the OpenAI-compatible endpoint Groq serves.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// groqDefaultModel is the model used when a request names none.
const groqDefaultModel = "llama-3.3-70b-versatile"

// groqModels is the closed model list for the Groq provider.
var groqModels = []string{
	"llama-3.1-8b-instant",
	"llama-3.3-70b-versatile",
	"gemma2-9b-it",
	"mixtral-8x7b-32768",
}

// GroqConfig holds the construction parameters for the Groq adapter.
// BaseURL and HTTPClient exist for tests pointing at a mock server;
// production callers leave them zero.
type GroqConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// groqProvider adapts Groq's OpenAI-compatible chat completions API.
//
// # Description
//
// Groq speaks the OpenAI wire protocol, so the adapter reuses the
// go-openai client with a swapped base URL. It is stateless and safe
// for concurrent use.
//
// # Limitations
//
//   - The model list is fixed at build time; unknown models are passed
//     through to the vendor only on the request/response path, where the
//     vendor's own rejection is surfaced as a ProviderError.
type groqProvider struct {
	client       *openai.Client
	streamClient *openai.Client
	logger       *slog.Logger
}

var _ Provider = (*groqProvider)(nil)

// NewGroqProvider creates a Groq adapter.
//
// # Inputs
//
//   - cfg: Construction parameters. APIKey must be non-empty; the
//     registry guarantees this in production.
//
// # Outputs
//
//   - Provider: The adapter. Panics if cfg.APIKey is empty.
func NewGroqProvider(cfg GroqConfig) Provider {
	if cfg.APIKey == "" {
		panic("NewGroqProvider: APIKey is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = GroqBaseURL
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	streamCfg := clientCfg
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
		streamCfg.HTTPClient = cfg.HTTPClient
	} else {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 120 * time.Second
		}
		clientCfg.HTTPClient = &http.Client{Timeout: timeout}
		// A whole-request deadline would cut off generations that
		// legitimately stream longer than the timeout. The streaming
		// client bounds only the wait for response headers; mid-stream
		// silence is the fragmentStream watchdog's job.
		streamCfg.HTTPClient = &http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: timeout},
		}
	}

	return &groqProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		streamClient: openai.NewClientWithConfig(streamCfg),
		logger:       slog.Default().With("component", "groq_provider"),
	}
}

func (p *groqProvider) Name() string {
	return ProviderGroq
}

func (p *groqProvider) DefaultModel() string {
	return groqDefaultModel
}

func (p *groqProvider) AvailableModels() []string {
	models := make([]string, len(groqModels))
	copy(models, groqModels)
	return models
}

func (p *groqProvider) SupportsModel(model string) bool {
	for _, m := range groqModels {
		if m == model {
			return true
		}
	}
	return false
}

// SendMessage performs a blocking completion against Groq.
func (p *groqProvider) SendMessage(ctx context.Context, req CompletionRequest) (*datatypes.ChatResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req, false))
	if err != nil {
		return nil, p.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: ProviderGroq, Err: errors.New("empty choices in response")}
	}

	return &datatypes.ChatResponse{
		Content:  resp.Choices[0].Message.Content,
		Model:    req.Model,
		Provider: ProviderGroq,
		Usage: &datatypes.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// StreamMessage starts a streamed completion against Groq. The returned
// stream yields delta fragments in arrival order; empty deltas are
// dropped.
func (p *groqProvider) StreamMessage(ctx context.Context, req CompletionRequest) (FragmentStream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	vendorStream, err := p.streamClient.CreateChatCompletionStream(streamCtx, p.buildRequest(req, true))
	if err != nil {
		cancel()
		return nil, p.wrapError(err)
	}

	fs := newFragmentStream(cancel, vendorStream.Close)

	go func() {
		for {
			resp, err := vendorStream.Recv()
			if errors.Is(err, io.EOF) {
				fs.finish()
				return
			}
			if err != nil {
				if streamCtx.Err() != nil {
					fs.fail(streamCtx.Err())
					return
				}
				fs.fail(p.wrapError(err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				if !fs.send(delta) {
					return
				}
			}
		}
	}()

	return fs, nil
}

func (p *groqProvider) buildRequest(req CompletionRequest, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
}

// wrapError normalizes go-openai errors into ProviderError, preserving
// the vendor HTTP status when one was received.
func (p *groqProvider) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: ProviderGroq, StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Provider: ProviderGroq, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &ProviderError{Provider: ProviderGroq, Err: err}
}

// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ai

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Git-Shashi/intellichat/datatypes"
)

// GeminiBaseURL is the Google Generative Language API endpoint.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// geminiDefaultModel is the model used when a request names none.
const geminiDefaultModel = "gemini-2.5-flash"

// geminiModels is the closed model list for the Gemini provider.
var geminiModels = []string{
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-flash-latest",
}

// geminiScanBufferSize bounds a single SSE line from the vendor. Gemini
// packs whole candidate parts into one data line, so this must be well
// above the typical chunk size.
const geminiScanBufferSize = 1024 * 1024

// GeminiConfig holds the construction parameters for the Gemini adapter.
// BaseURL exists for tests pointing at a mock server.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// ======  Vendor wire types  ======

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata *geminiUsage      `json:"usageMetadata,omitempty"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// geminiProvider adapts the Google Generative Language REST API.
//
// # Description
//
// Gemini is the prompt-based provider: it does not take a role-tagged
// message array, so the adapter flattens the history into one labeled
// prompt string (see formatPrompt) before every call. Streaming uses
// the vendor's SSE framing (streamGenerateContent?alt=sse) read off the
// raw response body.
type geminiProvider struct {
	client       *resty.Client
	streamClient *resty.Client
	apiKey       string
	logger       *slog.Logger
}

var _ Provider = (*geminiProvider)(nil)

// NewGeminiProvider creates a Gemini adapter. Panics if cfg.APIKey is
// empty; the registry guarantees a credential in production.
func NewGeminiProvider(cfg GeminiConfig) Provider {
	if cfg.APIKey == "" {
		panic("NewGeminiProvider: APIKey is required")
	}

	baseURL := GeminiBaseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	// A whole-request deadline would cut off generations that stream
	// longer than the timeout, so the streaming client bounds only the
	// wait for response headers; mid-stream silence is the
	// fragmentStream watchdog's job.
	streamClient := resty.NewWithClient(&http.Client{
		Transport: &http.Transport{ResponseHeaderTimeout: timeout},
	}).
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json")

	return &geminiProvider{
		client:       client,
		streamClient: streamClient,
		apiKey:       cfg.APIKey,
		logger:       slog.Default().With("component", "gemini_provider"),
	}
}

func (p *geminiProvider) Name() string {
	return ProviderGemini
}

func (p *geminiProvider) DefaultModel() string {
	return geminiDefaultModel
}

func (p *geminiProvider) AvailableModels() []string {
	models := make([]string, len(geminiModels))
	copy(models, geminiModels)
	return models
}

func (p *geminiProvider) SupportsModel(model string) bool {
	for _, m := range geminiModels {
		if m == model {
			return true
		}
	}
	return false
}

// SendMessage performs a blocking completion against Gemini.
func (p *geminiProvider) SendMessage(ctx context.Context, req CompletionRequest) (*datatypes.ChatResponse, error) {
	var result geminiResponse
	var errBody geminiErrorBody

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("key", p.apiKey).
		SetBody(p.buildRequest(req)).
		SetResult(&result).
		SetError(&errBody).
		Post(fmt.Sprintf("/models/%s:generateContent", req.Model))
	if err != nil {
		return nil, &ProviderError{Provider: ProviderGemini, Err: err}
	}
	if resp.IsError() {
		return nil, p.statusError(resp.StatusCode(), errBody)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, &ProviderError{Provider: ProviderGemini, Err: errors.New("empty candidates in response")}
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	out := &datatypes.ChatResponse{
		Content:  sb.String(),
		Model:    req.Model,
		Provider: ProviderGemini,
	}
	if result.UsageMetadata != nil {
		out.Usage = &datatypes.TokenUsage{
			InputTokens:  result.UsageMetadata.PromptTokenCount,
			OutputTokens: result.UsageMetadata.CandidatesTokenCount,
		}
	}
	return out, nil
}

// StreamMessage starts a streamed completion against Gemini.
//
// # Description
//
// The vendor emits one SSE data line per partial response; each line is
// a complete JSON document whose candidate parts hold the new text. The
// response body is consumed line by line on a producer goroutine and
// fragments are handed to the returned FragmentStream.
func (p *geminiProvider) StreamMessage(ctx context.Context, req CompletionRequest) (FragmentStream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	resp, err := p.streamClient.R().
		SetContext(streamCtx).
		SetQueryParam("key", p.apiKey).
		SetQueryParam("alt", "sse").
		SetBody(p.buildRequest(req)).
		SetDoNotParseResponse(true).
		Post(fmt.Sprintf("/models/%s:streamGenerateContent", req.Model))
	if err != nil {
		cancel()
		return nil, &ProviderError{Provider: ProviderGemini, Err: err}
	}

	body := resp.RawBody()
	if resp.IsError() {
		defer body.Close()
		var errBody geminiErrorBody
		_ = json.NewDecoder(body).Decode(&errBody)
		cancel()
		return nil, p.statusError(resp.StatusCode(), errBody)
	}

	fs := newFragmentStream(cancel, body.Close)

	go func() {
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 64*1024), geminiScanBufferSize)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" || payload == "[DONE]" {
				continue
			}

			var chunk geminiResponse
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				fs.fail(&ProviderError{Provider: ProviderGemini, Err: fmt.Errorf("malformed stream payload: %w", err)})
				return
			}
			for _, cand := range chunk.Candidates {
				for _, part := range cand.Content.Parts {
					if part.Text == "" {
						continue
					}
					if !fs.send(part.Text) {
						return
					}
				}
			}
		}

		if err := scanner.Err(); err != nil {
			if streamCtx.Err() != nil {
				fs.fail(streamCtx.Err())
				return
			}
			fs.fail(&ProviderError{Provider: ProviderGemini, Err: err})
			return
		}
		fs.finish()
	}()

	return fs, nil
}

// buildRequest flattens the history into the vendor's single-content
// request shape.
func (p *geminiProvider) buildRequest(req CompletionRequest) geminiRequest {
	return geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: formatPrompt(req.Messages)}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
}

func (p *geminiProvider) statusError(status int, body geminiErrorBody) error {
	msg := body.Error.Message
	if msg == "" {
		msg = "request rejected"
	}
	return &ProviderError{Provider: ProviderGemini, StatusCode: status, Err: errors.New(msg)}
}

// formatPrompt converts a role-tagged history into the labeled prompt
// string Gemini receives. Each turn becomes a "System:", "User:" or
// "Assistant:" paragraph; unknown roles are skipped; the result is
// trimmed of trailing whitespace.
func formatPrompt(messages []datatypes.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		switch m.Role {
		case datatypes.RoleSystem:
			sb.WriteString("System: ")
		case datatypes.RoleUser:
			sb.WriteString("User: ")
		case datatypes.RoleAssistant:
			sb.WriteString("Assistant: ")
		default:
			continue
		}
		sb.WriteString(m.Content)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}

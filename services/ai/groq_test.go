// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockGroqServer returns an httptest server speaking the
// OpenAI-compatible chat completions wire protocol. chunks drive the
// streaming response; content drives the blocking one.
func newMockGroqServer(t *testing.T, content string, chunks []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)

		var req struct {
			Model  string `json:"model"`
			Stream bool   `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if !req.Stream {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{
				"id": "chatcmpl-1",
				"object": "chat.completion",
				"model": %q,
				"choices": [{"index": 0, "message": {"role": "assistant", "content": %q}, "finish_reason": "stop"}],
				"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
			}`, req.Model, content)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range chunks {
			delta, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: {\"id\":\"chatcmpl-1\",\"object\":\"chat.completion.chunk\",\"model\":%q,\"choices\":[{\"index\":0,\"delta\":{\"content\":%s}}]}\n\n", req.Model, delta)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

func newTestGroqProvider(t *testing.T, serverURL string) Provider {
	t.Helper()
	return NewGroqProvider(GroqConfig{APIKey: "test-key", BaseURL: serverURL})
}

// TestNewGroqProvider_RequiresKey verifies the constructor contract.
func TestNewGroqProvider_RequiresKey(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		NewGroqProvider(GroqConfig{})
	})
}

// TestGroqProvider_Metadata verifies name, models, and the default.
func TestGroqProvider_Metadata(t *testing.T) {
	t.Parallel()

	p := newTestGroqProvider(t, "http://localhost:1")
	assert.Equal(t, ProviderGroq, p.Name())
	assert.Equal(t, "llama-3.3-70b-versatile", p.DefaultModel())
	assert.Contains(t, p.AvailableModels(), "llama-3.1-8b-instant")
	assert.True(t, p.SupportsModel("gemma2-9b-it"))
	assert.False(t, p.SupportsModel("gpt-4"))
}

// TestGroqProvider_SendMessage verifies the blocking path and usage
// mapping.
func TestGroqProvider_SendMessage(t *testing.T) {
	t.Parallel()

	server := newMockGroqServer(t, "Hello from Groq", nil)
	defer server.Close()
	p := newTestGroqProvider(t, server.URL)

	resp, err := p.SendMessage(context.Background(), CompletionRequest{
		Messages:    userMessages("Hi"),
		Model:       "llama-3.1-8b-instant",
		Temperature: 0.7,
		MaxTokens:   100,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello from Groq", resp.Content)
	assert.Equal(t, ProviderGroq, resp.Provider)
	assert.Equal(t, "llama-3.1-8b-instant", resp.Model)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, 7, resp.Usage.OutputTokens)
}

// TestGroqProvider_StreamMessage verifies fragment order and the
// concatenation law against the streaming path.
func TestGroqProvider_StreamMessage(t *testing.T) {
	t.Parallel()

	chunks := []string{"Hel", "lo ", "wor", "ld"}
	server := newMockGroqServer(t, "", chunks)
	defer server.Close()
	p := newTestGroqProvider(t, server.URL)

	stream, err := p.StreamMessage(context.Background(), CompletionRequest{
		Messages:    userMessages("Hi"),
		Model:       "llama-3.3-70b-versatile",
		Temperature: 0.7,
		MaxTokens:   100,
	})
	require.NoError(t, err)

	got, err := Collect(context.Background(), stream)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", got)
}

// TestGroqProvider_StreamOutlivesTimeout verifies the configured
// timeout bounds only the wait for response headers on the streaming
// path, so a generation may keep streaming past it.
func TestGroqProvider_StreamOutlivesTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range []string{"slow ", "and ", "steady"} {
			fmt.Fprintf(w, "data: {\"id\":\"chatcmpl-1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", chunk)
			flusher.Flush()
			time.Sleep(50 * time.Millisecond)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	p := NewGroqProvider(GroqConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: 75 * time.Millisecond, // shorter than the whole stream
	})

	stream, err := p.StreamMessage(context.Background(), CompletionRequest{
		Messages: userMessages("Hi"),
		Model:    "llama-3.3-70b-versatile",
	})
	require.NoError(t, err)

	got, err := Collect(context.Background(), stream)
	require.NoError(t, err, "a slow stream must not be cut off by the request timeout")
	assert.Equal(t, "slow and steady", got)
}

// TestGroqProvider_VendorError verifies a vendor rejection surfaces as
// a ProviderError carrying the status code.
func TestGroqProvider_VendorError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "invalid api key", "type": "auth"}}`)
	}))
	defer server.Close()
	p := newTestGroqProvider(t, server.URL)

	_, err := p.SendMessage(context.Background(), CompletionRequest{
		Messages: userMessages("Hi"),
		Model:    "llama-3.1-8b-instant",
	})
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ProviderGroq, provErr.Provider)
	assert.Equal(t, http.StatusUnauthorized, provErr.StatusCode)
}

// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/Git-Shashi/intellichat/config"
	"github.com/Git-Shashi/intellichat/middleware"
	"github.com/Git-Shashi/intellichat/observability"
	"github.com/Git-Shashi/intellichat/services/ai"
	"github.com/Git-Shashi/intellichat/store"
)

// newMockVendorServer returns an httptest server speaking the
// OpenAI-compatible wire protocol used by the groq backend. chunks
// drive streaming requests, content the blocking ones. A failAfter of
// n >= 0 aborts the stream after n chunks with a vendor error frame.
func newMockVendorServer(t *testing.T, content string, chunks []string, failAfter int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model  string `json:"model"`
			Stream bool   `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if !req.Stream {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{
				"id": "chatcmpl-1",
				"model": %q,
				"choices": [{"index": 0, "message": {"role": "assistant", "content": %q}}],
				"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
			}`, req.Model, content)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i, chunk := range chunks {
			if failAfter >= 0 && i == failAfter {
				// Kill the TCP connection mid-stream so the client sees
				// an unexpected EOF, not a clean end of stream.
				conn, _, err := w.(http.Hijacker).Hijack()
				require.NoError(t, err)
				conn.Close()
				return
			}
			delta, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: {\"id\":\"chatcmpl-1\",\"model\":%q,\"choices\":[{\"index\":0,\"delta\":{\"content\":%s}}]}\n\n", req.Model, delta)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

// newSlowVendorServer streams one fragment every 50ms until the client
// disconnects. Used to exercise cancellation.
func newSlowVendorServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				fmt.Fprintf(w, "data: {\"id\":\"chatcmpl-1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"tok%d \"}}]}\n\n", i)
				flusher.Flush()
			}
		}
	}))
}

// testEnv wires the full handler stack against a mock vendor and an
// in-memory database.
type testEnv struct {
	router        *gin.Engine
	conversations *store.ConversationStore
	messages      *store.MessageStore
	orchestrator  *ai.Orchestrator
}

func newTestEnv(t *testing.T, vendorURL string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conversations := store.NewConversationStore(db)
	messages := store.NewMessageStore(db)

	registry := ai.NewRegistry(ai.RegistryConfig{GroqBaseURL: vendorURL, GeminiBaseURL: vendorURL})
	orchestrator := ai.NewOrchestrator(registry, config.StaticCredentials{
		ai.ProviderGroq:   "test-key",
		ai.ProviderGemini: "test-key",
	})

	metrics := observability.NewChatMetrics(prometheus.NewRegistry())

	aiHandler := NewAIHandler(orchestrator, metrics)
	convHandler := NewConversationHandler(conversations, messages, orchestrator)
	wsHandler := NewChatWSHandler(orchestrator, conversations, messages, metrics)

	router := gin.New()
	auth := middleware.AuthMiddleware(middleware.NopAuthProvider{})
	v1 := router.Group("/v1", auth)
	{
		v1.POST("/ai/chat", aiHandler.Chat)
		v1.POST("/ai/chat/stream", aiHandler.ChatStream)
		v1.GET("/ai/providers", aiHandler.ListProviders)
		v1.POST("/ai/test", aiHandler.TestProvider)
		v1.POST("/conversations", convHandler.Create)
		v1.GET("/conversations", convHandler.List)
		v1.GET("/conversations/:id", convHandler.Get)
		v1.PATCH("/conversations/:id", convHandler.Rename)
		v1.DELETE("/conversations/:id", convHandler.Delete)
		v1.POST("/conversations/:id/messages", convHandler.SendMessage)
		v1.GET("/ws/chat", wsHandler.HandleConnection)
	}

	return &testEnv{
		router:        router,
		conversations: conversations,
		messages:      messages,
		orchestrator:  orchestrator,
	}
}

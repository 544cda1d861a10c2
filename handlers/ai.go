// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Git-Shashi/intellichat/datatypes"
	"github.com/Git-Shashi/intellichat/observability"
	"github.com/Git-Shashi/intellichat/services/ai"
)

// AIHandler serves the request/response AI gateway (/v1/ai/*).
//
// # Description
//
// This surface runs ad-hoc generations against an explicitly named
// provider. Nothing on this path is persisted; durable conversation
// turns go through the live session gateway or the conversation
// endpoints.
type AIHandler struct {
	orchestrator *ai.Orchestrator
	metrics      *observability.ChatMetrics
	logger       *slog.Logger
	tracer       trace.Tracer
}

// NewAIHandler creates an AIHandler. Panics on nil dependencies.
func NewAIHandler(orchestrator *ai.Orchestrator, metrics *observability.ChatMetrics) *AIHandler {
	if orchestrator == nil {
		panic("NewAIHandler: orchestrator is required")
	}
	if metrics == nil {
		panic("NewAIHandler: metrics is required")
	}
	return &AIHandler{
		orchestrator: orchestrator,
		metrics:      metrics,
		logger:       slog.Default().With("component", "ai_handler"),
		tracer:       otel.Tracer("intellichat/handlers"),
	}
}

// Chat handles POST /v1/ai/chat, the synchronous generation path.
//
// # Description
//
// Step 1: Decode the body; unknown JSON keys are ignored.
// Step 2: Run the generation through the orchestrator, which validates
// before any vendor call.
// Step 3: Return the full response or the translated error (400 for
// validation, 500 for provider failure).
func (h *AIHandler) Chat(c *gin.Context) {
	var req datatypes.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, ai.NewValidationError("body", "invalid JSON payload"))
		return
	}

	resp, err := h.orchestrator.Complete(c.Request.Context(), req)
	if err != nil {
		h.metrics.ErrorsTotal.WithLabelValues("http_sync", errorKind(err)).Inc()
		h.metrics.RequestsTotal.WithLabelValues("http_sync", req.Provider, "error").Inc()
		respondError(c, err)
		return
	}

	h.metrics.RequestsTotal.WithLabelValues("http_sync", req.Provider, "success").Inc()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    resp,
	})
}

// ChatStream handles POST /v1/ai/chat/stream, the streaming generation
// path.
//
// # Description
//
// The wire framing is selected by the format query parameter ("sse" or
// "json"). Validation failures are reported as plain JSON errors before
// any streaming header is written; once streaming starts, failures are
// reported with an in-band error marker frame, never an abrupt close.
func (h *AIHandler) ChatStream(c *gin.Context) {
	format := c.DefaultQuery("format", FormatSSE)

	var req datatypes.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, ai.NewValidationError("body", "invalid JSON payload"))
		return
	}

	stream, info, err := h.orchestrator.Stream(c.Request.Context(), req)
	if err != nil {
		h.metrics.ErrorsTotal.WithLabelValues("http_stream", errorKind(err)).Inc()
		h.metrics.RequestsTotal.WithLabelValues("http_stream", req.Provider, "error").Inc()
		respondError(c, err)
		return
	}
	defer stream.Close()

	writer, err := NewStreamWriter(c, format)
	if err != nil {
		respondError(c, err)
		return
	}

	h.metrics.ActiveStreams.WithLabelValues("http_stream").Inc()
	defer h.metrics.ActiveStreams.WithLabelValues("http_stream").Dec()

	start := time.Now()
	ctx := c.Request.Context()

	for {
		fragment, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			if err := writer.WriteEnd("Stream completed"); err != nil {
				h.logger.Warn("end marker write failed", "error", err)
			}
			h.metrics.RequestsTotal.WithLabelValues("http_stream", info.Provider, "success").Inc()
			h.metrics.StreamDurationSeconds.WithLabelValues("http_stream", info.Provider).
				Observe(time.Since(start).Seconds())
			return
		}
		if err != nil {
			h.logger.Error("stream failed",
				"provider", info.Provider,
				"model", info.Model,
				"error", err)
			h.metrics.ErrorsTotal.WithLabelValues("http_stream", errorKind(err)).Inc()
			h.metrics.RequestsTotal.WithLabelValues("http_stream", info.Provider, "error").Inc()
			if werr := writer.WriteError(err.Error()); werr != nil {
				h.logger.Warn("error marker write failed", "error", werr)
			}
			return
		}

		h.metrics.ChunksTotal.WithLabelValues(info.Provider).Inc()
		err = writer.WriteChunk(datatypes.StreamChunk{
			Content:  fragment,
			Model:    info.Model,
			Provider: info.Provider,
		})
		if err != nil {
			// Client went away; nothing left to write to.
			h.logger.Info("client disconnected mid-stream", "provider", info.Provider)
			return
		}
	}
}

// ListProviders handles GET /v1/ai/providers.
func (h *AIHandler) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    h.orchestrator.Providers(),
	})
}

// TestProvider handles POST /v1/ai/test, a connectivity check that runs
// a one-word generation against the named provider.
func (h *AIHandler) TestProvider(c *gin.Context) {
	var req datatypes.TestProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, ai.NewValidationError("body", "invalid JSON payload"))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, ai.NewValidationError("", err.Error()))
		return
	}

	resp, err := h.orchestrator.TestProvider(c.Request.Context(), req.Provider)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"provider": req.Provider,
			"message":  "Provider is working",
			"response": resp.Content,
		},
	})
}

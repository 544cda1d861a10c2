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

	"github.com/gin-gonic/gin"

	"github.com/Git-Shashi/intellichat/datatypes"
)

// Streaming format selectors for the format query parameter.
const (
	FormatSSE  = "sse"
	FormatJSON = "json"
)

// StreamWriter frames stream chunks onto an HTTP response.
//
// # Description
//
// Implementations write one frame per call and flush immediately, so
// each fragment reaches the client as soon as it is produced. WriteEnd
// and WriteError emit the terminal marker frame; exactly one of them is
// written per response, always last. Implementations are not safe for
// concurrent use; a single goroutine owns the response.
type StreamWriter interface {
	// WriteChunk writes one content frame.
	WriteChunk(chunk datatypes.StreamChunk) error

	// WriteEnd writes the end-of-stream marker.
	WriteEnd(message string) error

	// WriteError writes the error marker. Used instead of an abrupt
	// connection close so clients can distinguish failure from
	// completion.
	WriteError(message string) error
}

// ======  SSE framing  ======

// sseStreamWriter frames chunks as server-sent events: each frame is
// "data: <json>\n\n".
type sseStreamWriter struct {
	w       gin.ResponseWriter
	flusher http.Flusher
}

var _ StreamWriter = (*sseStreamWriter)(nil)

// ndjsonStreamWriter frames chunks as newline-delimited JSON: one JSON
// object per line.
type ndjsonStreamWriter struct {
	w       gin.ResponseWriter
	flusher http.Flusher
}

var _ StreamWriter = (*ndjsonStreamWriter)(nil)

// NewStreamWriter creates the writer for the requested format and sets
// the response headers for it.
//
// # Inputs
//
//   - c: Request context. The underlying writer must support flushing.
//   - format: FormatSSE or FormatJSON. Anything else falls back to SSE,
//     matching the lenient query parameter contract.
//
// # Outputs
//
//   - StreamWriter: The framing writer.
//   - error: Non-nil if the connection cannot stream.
func NewStreamWriter(c *gin.Context, format string) (StreamWriter, error) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported: response writer is not a flusher")
	}

	if format == FormatJSON {
		c.Header("Content-Type", "application/x-ndjson")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		return &ndjsonStreamWriter{w: c.Writer, flusher: flusher}, nil
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	return &sseStreamWriter{w: c.Writer, flusher: flusher}, nil
}

func (w *sseStreamWriter) write(chunk datatypes.StreamChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal stream chunk: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write sse frame: %w", err)
	}
	w.flusher.Flush()
	return nil
}

func (w *sseStreamWriter) WriteChunk(chunk datatypes.StreamChunk) error {
	return w.write(chunk)
}

func (w *sseStreamWriter) WriteEnd(message string) error {
	return w.write(datatypes.StreamChunk{Type: datatypes.StreamChunkEnd, Message: message})
}

func (w *sseStreamWriter) WriteError(message string) error {
	return w.write(datatypes.StreamChunk{Type: datatypes.StreamChunkError, Error: message})
}

func (w *ndjsonStreamWriter) write(chunk datatypes.StreamChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal stream chunk: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("write ndjson frame: %w", err)
	}
	w.flusher.Flush()
	return nil
}

func (w *ndjsonStreamWriter) WriteChunk(chunk datatypes.StreamChunk) error {
	return w.write(chunk)
}

func (w *ndjsonStreamWriter) WriteEnd(message string) error {
	return w.write(datatypes.StreamChunk{Type: datatypes.StreamChunkEnd, Message: message})
}

func (w *ndjsonStreamWriter) WriteError(message string) error {
	return w.write(datatypes.StreamChunk{Type: datatypes.StreamChunkError, Error: message})
}

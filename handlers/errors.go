// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP and WebSocket handlers for the
// chat service: the request/response AI gateway, the conversation CRUD
// endpoints, and the live session gateway.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Git-Shashi/intellichat/services/ai"
	"github.com/Git-Shashi/intellichat/store"
)

// errorKind buckets an error for metrics labels and logging.
func errorKind(err error) string {
	var validationErr *ai.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return "validation"
	case errors.Is(err, ai.ErrUnsupportedProvider):
		return "unsupported_provider"
	case errors.Is(err, ai.ErrCredentialMissing):
		return "credential_missing"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	default:
		var providerErr *ai.ProviderError
		if errors.As(err, &providerErr) {
			return "provider_error"
		}
		return "internal"
	}
}

// statusForError maps the error taxonomy onto HTTP status codes.
// Validation and unknown-provider failures are client errors; missing
// credentials, vendor failures, and persistence failures are server
// errors.
func statusForError(err error) int {
	var validationErr *ai.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, ai.ErrUnsupportedProvider):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the structured error envelope for err.
func respondError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the chat service.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization
// header (or, for WebSocket handshakes where browsers cannot set
// headers, the "token" query parameter), validates it with the
// configured AuthProvider, and stores the authenticated user id in the
// Gin context for downstream handlers.
//
// With NopAuthProvider (the default when no token is configured) every
// request is authenticated as "local-user", so the service runs without
// any auth infrastructure in single-user deployments.
package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// userIDKey is the context key for the authenticated user id. Typed
// key string prevents collisions with other context values.
const userIDKey = "intellichat_user_id"

// LocalUserID is the identity assigned when auth is disabled.
const LocalUserID = "local-user"

// ErrInvalidToken is returned by AuthProviders for a bad credential.
var ErrInvalidToken = errors.New("invalid or missing token")

// AuthProvider validates a credential and yields a user id.
type AuthProvider interface {
	Validate(ctx context.Context, token string) (string, error)
}

// NopAuthProvider accepts every request as LocalUserID.
type NopAuthProvider struct{}

func (NopAuthProvider) Validate(ctx context.Context, token string) (string, error) {
	return LocalUserID, nil
}

// StaticTokenProvider accepts exactly one shared token. Comparison is
// constant time.
type StaticTokenProvider struct {
	Token string
}

func (p StaticTokenProvider) Validate(ctx context.Context, token string) (string, error) {
	if subtle.ConstantTimeCompare([]byte(token), []byte(p.Token)) != 1 {
		return "", ErrInvalidToken
	}
	return LocalUserID, nil
}

// SetUserID stores the authenticated user id in the Gin context.
func SetUserID(c *gin.Context, userID string) {
	c.Set(userIDKey, userID)
}

// GetUserID returns the authenticated user id set by AuthMiddleware.
// The second return is false if the middleware did not run.
func GetUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// AuthMiddleware authenticates every request with the given provider.
//
// # Description
//
// The token is taken from "Authorization: Bearer <token>" or, when the
// header is absent, from the "token" query parameter or the
// "accessToken" cookie so WebSocket handshakes can authenticate too. A
// rejected credential aborts the request with 401 before any handler
// runs.
func AuthMiddleware(provider AuthProvider) gin.HandlerFunc {
	if provider == nil {
		panic("AuthMiddleware: provider is required")
	}
	return func(c *gin.Context) {
		token := extractToken(c)

		userID, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}

		SetUserID(c, userID)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if token := c.Query("token"); token != "" {
		return token
	}
	if cookie, err := c.Cookie("accessToken"); err == nil {
		return cookie
	}
	return ""
}

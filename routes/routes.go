// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Git-Shashi/intellichat/handlers"
	"github.com/Git-Shashi/intellichat/middleware"
)

// Deps carries the constructed handlers and middleware for route
// registration.
type Deps struct {
	AI            *handlers.AIHandler
	Conversations *handlers.ConversationHandler
	ChatWS        *handlers.ChatWSHandler
	Auth          middleware.AuthProvider
}

// SetupRoutes registers every route on the router. Health and metrics
// stay outside the auth boundary; everything under /v1 requires an
// authenticated user.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(deps.Auth))
	{
		aiGroup := v1.Group("/ai")
		{
			aiGroup.POST("/chat", deps.AI.Chat)
			aiGroup.POST("/chat/stream", deps.AI.ChatStream)
			aiGroup.GET("/providers", deps.AI.ListProviders)
			aiGroup.POST("/test", deps.AI.TestProvider)
		}

		conversations := v1.Group("/conversations")
		{
			conversations.POST("", deps.Conversations.Create)
			conversations.GET("", deps.Conversations.List)
			conversations.GET("/:id", deps.Conversations.Get)
			conversations.PATCH("/:id", deps.Conversations.Rename)
			conversations.DELETE("/:id", deps.Conversations.Delete)
			conversations.POST("/:id/messages", deps.Conversations.SendMessage)
		}

		v1.GET("/ws/chat", deps.ChatWS.HandleConnection)
	}
}

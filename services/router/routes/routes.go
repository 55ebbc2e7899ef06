// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meridianpay/agent-router/services/router/handlers"
	"github.com/meridianpay/agent-router/services/router/orchestration"
)

// SetupRoutes registers all HTTP routes on the gin engine.
func SetupRoutes(router *gin.Engine, pipeline *orchestration.Pipeline) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/chat", handlers.HandleChat(pipeline))
		chat := v1.Group("/chat")
		{
			chat.GET("/history/:conversationId", handlers.GetHistory(pipeline))
			chat.GET("/user/:userId/conversations", handlers.ListConversations(pipeline))
		}
	}
}

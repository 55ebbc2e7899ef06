// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meridianpay/agent-router/services/router/datatypes"
	"github.com/meridianpay/agent-router/services/router/orchestration"
)

// GetHistory serves GET /v1/chat/history/:conversationId.
//
// Unknown and expired conversations return an empty history with HTTP 200,
// and so do store failures; the read path never hard-errors.
func GetHistory(pipeline *orchestration.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "GetHistory")
		defer span.End()

		conversationId := c.Param("conversationId")
		if conversationId == "" || len(conversationId) > datatypes.MaxIdentifierLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
			return
		}

		exchanges := pipeline.History(ctx, conversationId)
		history := make([]datatypes.HistoryEntry, 0, len(exchanges))
		for _, ex := range exchanges {
			history = append(history, datatypes.HistoryEntry{
				UserMessage:   ex.UserMessage,
				AgentResponse: ex.AgentResponse,
				Timestamp:     ex.Timestamp,
			})
		}
		c.JSON(http.StatusOK, datatypes.HistoryResponse{History: history})
	}
}

// ListConversations serves GET /v1/chat/user/:userId/conversations.
func ListConversations(pipeline *orchestration.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "ListConversations")
		defer span.End()

		userId := c.Param("userId")
		if userId == "" || len(userId) > datatypes.MaxIdentifierLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}

		ids := pipeline.ListConversations(ctx, userId)
		if ids == nil {
			ids = []string{}
		}
		c.JSON(http.StatusOK, datatypes.ConversationsResponse{ConversationIds: ids})
	}
}

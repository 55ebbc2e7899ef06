// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers provides the gin HTTP handlers for the router service.
//
// Handlers translate HTTP to pipeline calls and back. Business outcomes,
// including Error and UnsupportedLanguage decisions, are HTTP 200 with the
// decision in the body; non-2xx statuses are reserved for malformed
// requests.
package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/meridianpay/agent-router/services/router/datatypes"
	"github.com/meridianpay/agent-router/services/router/orchestration"
)

var handlerTracer = otel.Tracer("agentrouter.handlers")

// HandleChat serves POST /v1/chat.
//
// # Description
//
// Binds and validates the request, runs it through the pipeline, and
// returns the full ChatResponse with the workflow trail. Every completed
// routing decision is HTTP 200; only binding and validation failures map
// to HTTP 400.
func HandleChat(pipeline *orchestration.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		var req datatypes.ChatRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the chat request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "'message' cannot be empty"})
			return
		}
		if err := req.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp := pipeline.HandleChat(ctx, req)
		c.JSON(http.StatusOK, resp)
	}
}

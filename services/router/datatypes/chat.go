// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the router service.
//
// This file contains the request and response types for the chat endpoints.
// For the decision variant see decision.go; for conversation records see
// exchange.go.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants for Security Compliance
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single chat message.
	// Oversized payloads are rejected at validation time to bound memory.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxIdentifierLength bounds user and conversation ids. Ids are opaque
	// strings chosen by the client; the cap only prevents abuse of the
	// backing store's key space.
	MaxIdentifierLength = 128
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxMessageContentBytes on a string field.
// Checks byte length, not rune count, to bound actual memory use.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// =============================================================================
// Chat Request / Response Types
// =============================================================================

// ChatRequest is the body of POST /chat.
//
// # Fields
//
//   - Message: Required. The raw user query. Limited to 32KB.
//   - UserId: Required. Opaque client identity, maintained client-side.
//   - ConversationId: Required. Opaque conversation identity; the
//     conversation is created lazily on first successful append.
//
// # Validation
//
//   - Message: required, non-blank, max 32768 bytes
//   - UserId / ConversationId: required, max 128 characters
type ChatRequest struct {
	Message        string `json:"message" validate:"required,maxbytes"`
	UserId         string `json:"user_id" validate:"required,max=128"`
	ConversationId string `json:"conversation_id" validate:"required,max=128"`
}

// Validate validates the ChatRequest fields after JSON binding.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// ChatResponse is the body returned by POST /chat.
//
// RouterDecision is always populated, including the Error and
// UnsupportedLanguage business outcomes, which are still HTTP 200.
// SourceAgentResponse carries the responder's raw output before response
// conversion; for pass-through responders it equals Response.
type ChatResponse struct {
	UserId              string         `json:"user_id"`
	ConversationId      string         `json:"conversation_id"`
	RouterDecision      Decision       `json:"router_decision"`
	Response            string         `json:"response"`
	SourceAgentResponse string         `json:"source_agent_response"`
	AgentWorkflow       []WorkflowStep `json:"agent_workflow"`
}

// =============================================================================
// History Types
// =============================================================================

// HistoryEntry is one exchange as exposed by GET /chat/history.
type HistoryEntry struct {
	UserMessage   string    `json:"user_message"`
	AgentResponse string    `json:"agent_response"`
	Timestamp     time.Time `json:"timestamp"`
}

// HistoryResponse is the body of GET /chat/history/{conversation_id}.
// History is returned in append order; expired or unknown conversations
// yield an empty list, never an error.
type HistoryResponse struct {
	History []HistoryEntry `json:"history"`
}

// ConversationsResponse is the body of GET /chat/user/{user_id}/conversations.
type ConversationsResponse struct {
	ConversationIds []string `json:"conversation_ids"`
}

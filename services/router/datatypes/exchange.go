// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"time"

	"github.com/google/uuid"
)

// Exchange is one user message plus the agent response it produced.
//
// # Description
//
// Exchanges are immutable once appended to a conversation. Timestamps are
// UTC and monotonically non-decreasing within a conversation (the store
// assigns the append order; the timestamp is informational).
//
// # Fields
//
//   - Id: Server-generated UUID for the exchange.
//   - UserMessage: The sanitized user message that was answered.
//   - AgentResponse: The final (post-conversion) response text.
//   - Responder: Which decision produced the response.
//   - Timestamp: UTC time the exchange was completed.
//   - ExecutionMs: End-to-end processing time in milliseconds.
type Exchange struct {
	Id            string    `json:"id"`
	UserMessage   string    `json:"user_message"`
	AgentResponse string    `json:"agent_response"`
	Responder     Decision  `json:"responder"`
	Timestamp     time.Time `json:"timestamp"`
	ExecutionMs   int64     `json:"execution_ms"`
}

// NewExchange builds an Exchange with a fresh id and a UTC timestamp.
func NewExchange(userMessage, agentResponse string, responder Decision, execution time.Duration) Exchange {
	return Exchange{
		Id:            uuid.NewString(),
		UserMessage:   userMessage,
		AgentResponse: agentResponse,
		Responder:     responder,
		Timestamp:     time.Now().UTC(),
		ExecutionMs:   execution.Milliseconds(),
	}
}

// WorkflowStep is one entry in the audit trail returned alongside a chat
// response. The trail is append-only during a request and is discarded after
// the response is sent; it is never persisted.
type WorkflowStep struct {
	Agent  string `json:"agent"`
	Action string `json:"action"`
	Result string `json:"result"`
}

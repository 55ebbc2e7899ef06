// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package responders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/meridianpay/agent-router/services/llm"
	"github.com/meridianpay/agent-router/services/router/datatypes"
)

const converterSystemPrompt = `You rewrite terse calculator output into one friendly conversational sentence.

Rules:
1. The numeric result MUST appear verbatim in your sentence
2. Answer in the same language as the user's question
3. One sentence only, no preamble, no extra commentary`

// DefaultConvertTimeout bounds the optional conversion call. Kept shorter
// than the responder timeout since conversion is best-effort.
const DefaultConvertTimeout = 15 * time.Second

// convertible is the fixed allow-list of decisions whose raw output gets a
// conversational rewrite. Everything outside it passes through unchanged;
// a responder added later defaults to pass-through until listed here.
var convertible = map[datatypes.Decision]bool{
	datatypes.DecisionMath: true,
}

// Converter selectively rewrites responder output into conversational prose.
//
// # Description
//
// Only math results are converted: a bare number reads poorly in a chat,
// while the knowledge responder already produces prose and a second call
// would roughly double its latency for no quality gain.
//
// Conversion is a quality enhancement, not a correctness dependency: any
// failure of the conversion call returns the raw result.
//
// # Thread Safety
//
// Safe for concurrent use.
type Converter struct {
	client  llm.LLMClient
	timeout time.Duration
}

// NewConverter wraps a completion backend. A non-positive timeout falls back
// to DefaultConvertTimeout.
func NewConverter(client llm.LLMClient, timeout time.Duration) *Converter {
	if timeout <= 0 {
		timeout = DefaultConvertTimeout
	}
	return &Converter{client: client, timeout: timeout}
}

// Convert returns the user-facing text for a raw responder result.
//
// # Inputs
//
//   - ctx: Carries the request trace; the convert timeout is layered on top.
//   - decision: The responder that produced rawResult.
//   - query: The original user question, for language and phrasing.
//   - rawResult: The responder's output.
//
// # Outputs
//
//   - string: The converted sentence, or rawResult verbatim when the
//     decision is not on the conversion allow-list or the call fails.
func (c *Converter) Convert(ctx context.Context, decision datatypes.Decision, query, rawResult string) string {
	if !convertible[decision] {
		return rawResult
	}

	ctx, span := responderTracer.Start(ctx, "Converter.Convert")
	defer span.End()
	span.SetAttributes(attribute.String("converter.decision", string(decision)))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := fmt.Sprintf("Question: %s\nResult: %s\n\nRewrite the result as one friendly sentence answering the question.", query, rawResult)
	converted, err := c.client.Generate(ctx, prompt, llm.GenerationParams{System: converterSystemPrompt})
	if err != nil {
		slog.Warn("Response conversion failed, returning the raw result", "error", err)
		span.RecordError(err)
		return rawResult
	}

	converted = strings.TrimSpace(converted)
	if converted == "" || !strings.Contains(converted, rawResult) {
		// A sentence that drops the number is worse than the bare number.
		slog.Warn("Response conversion dropped the result, returning the raw result")
		return rawResult
	}
	return converted
}

// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package responders holds the specialized answer producers the orchestrator
// dispatches to after classification, plus the converter that rewrites terse
// results into conversational prose.
package responders

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/meridianpay/agent-router/services/llm"
)

var responderTracer = otel.Tracer("agentrouter.responders")

const mathSystemPrompt = `You are a mathematical calculator. Your job is to evaluate mathematical expressions and return ONLY the numerical result.

Rules:
1. Evaluate the mathematical expression provided
2. Return ONLY the final numerical result as a string
3. Do not include any explanations, steps, or additional text
4. If the expression is invalid or cannot be evaluated, return "Error"
5. Use standard mathematical notation and operations
6. Handle basic arithmetic, algebra, and other common mathematical operations

Examples:
- Input: "How much is 2 + 3" -> Output: "5"
- Input: "10 * 5" -> Output: "50"
- Input: "sqrt(16)" -> Output: "4"
- Input: "2^3" -> Output: "8"
- Input: "sin(pi/2)" -> Output: "1"`

// DefaultResponderTimeout bounds a single responder completion call.
const DefaultResponderTimeout = 30 * time.Second

// MathResponder evaluates arithmetic queries through the completion
// capability and validates that the output is actually numeric.
//
// # Thread Safety
//
// Safe for concurrent use.
type MathResponder struct {
	client  llm.LLMClient
	timeout time.Duration
}

// NewMathResponder wraps a completion backend. A non-positive timeout falls
// back to DefaultResponderTimeout.
func NewMathResponder(client llm.LLMClient, timeout time.Duration) *MathResponder {
	if timeout <= 0 {
		timeout = DefaultResponderTimeout
	}
	return &MathResponder{client: client, timeout: timeout}
}

// Solve evaluates a mathematical expression.
//
// # Description
//
// Sends the expression through the calculator prompt and verifies the model
// returned a parseable number. Anything else is an error: a non-numeric
// "answer" to a math question is worse than no answer.
//
// # Inputs
//
//   - ctx: Carries the request trace; the responder timeout is layered on top.
//   - query: The sanitized math query.
//
// # Outputs
//
//   - string: The numeric result, exactly as the model produced it.
//   - error: Non-nil on call failure or non-numeric output.
func (m *MathResponder) Solve(ctx context.Context, query string) (string, error) {
	ctx, span := responderTracer.Start(ctx, "MathResponder.Solve")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	temperature := float32(0)
	raw, err := m.client.Generate(ctx, fmt.Sprintf("Evaluate this mathematical expression: %s", query), llm.GenerationParams{
		System:      mathSystemPrompt,
		Temperature: &temperature,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "math completion failed")
		return "", fmt.Errorf("math completion failed: %w", err)
	}

	result := strings.TrimSpace(raw)
	if result == "" || strings.EqualFold(result, "error") {
		err := fmt.Errorf("could not evaluate the expression: %s", query)
		span.RecordError(err)
		span.SetStatus(codes.Error, "expression not evaluable")
		return "", err
	}

	if _, parseErr := strconv.ParseFloat(result, 64); parseErr != nil {
		err := fmt.Errorf("non-numerical math result: %q", result)
		span.RecordError(err)
		span.SetStatus(codes.Error, "non-numerical result")
		return "", err
	}

	span.SetAttributes(attribute.String("math.result", result))
	return result, nil
}

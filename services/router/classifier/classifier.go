// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package classifier maps a sanitized user message to exactly one routing
// decision. The decision comes from a single constrained LLM call; parsing
// is lenient but the output set is closed, so an uncooperative model can
// only ever produce DecisionError, never an unknown route.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/meridianpay/agent-router/services/llm"
	"github.com/meridianpay/agent-router/services/router/datatypes"
)

var classifierTracer = otel.Tracer("agentrouter.classifier")

// routerSystemPrompt constrains the model to the two dispatchable labels.
// Security and language outcomes are decided upstream by the gate, so the
// model never sees those labels.
const routerSystemPrompt = `You are a routing classifier for a customer support system.

Read the user's message and answer with EXACTLY ONE of these labels and nothing else:

MathResponder - the message is an arithmetic or numeric calculation question (for example: "What is 15*3?", "Quanto é 2+2?").
KnowledgeResponder - anything else: product questions, support questions, general conversation.

Rules:
- Output only the label. No punctuation, no explanation.
- Questions ABOUT math concepts without a concrete calculation go to KnowledgeResponder.
- When unsure, answer KnowledgeResponder.`

// DefaultClassifyTimeout bounds the single classification call.
const DefaultClassifyTimeout = 15 * time.Second

// Classifier produces a routing decision for a sanitized message.
//
// # Description
//
// One LLM call per message, temperature zero, no retries: a classification
// failure is cheap to surface (the orchestrator maps it to an error
// response) and retrying would add latency to every outage.
//
// # Thread Safety
//
// Safe for concurrent use.
type Classifier struct {
	client  llm.LLMClient
	timeout time.Duration
}

// NewClassifier wraps a completion backend. A non-positive timeout falls
// back to DefaultClassifyTimeout.
func NewClassifier(client llm.LLMClient, timeout time.Duration) *Classifier {
	if timeout <= 0 {
		timeout = DefaultClassifyTimeout
	}
	return &Classifier{client: client, timeout: timeout}
}

// Classify returns the routing decision for message.
//
// # Description
//
// Runs the constrained routing prompt and maps the raw model output onto
// the closed decision set. Any failure (timeout, backend error) returns
// DecisionError together with the error; out-of-set model output returns
// DecisionError together with an InvalidDecisionError carrying the raw
// output, since the call succeeded but produced nothing dispatchable.
//
// # Inputs
//
//   - ctx: Carries the request trace; the classify timeout is layered on top.
//   - message: The sanitized user message.
//
// # Outputs
//
//   - datatypes.Decision: Always a member of the closed set.
//   - error: Non-nil when the LLM call failed, or an InvalidDecisionError
//     when its output matched no label.
func (c *Classifier) Classify(ctx context.Context, message string) (datatypes.Decision, error) {
	ctx, span := classifierTracer.Start(ctx, "Classifier.Classify")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temperature := float32(0)
	maxTokens := 16
	raw, err := c.client.Generate(ctx, message, llm.GenerationParams{
		System:      routerSystemPrompt,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification call failed")
		return datatypes.DecisionError, fmt.Errorf("classification call failed: %w", err)
	}

	decision := datatypes.ParseDecision(raw)
	span.SetAttributes(
		attribute.String("classifier.raw_output", raw),
		attribute.String("classifier.decision", string(decision)),
	)

	if decision == datatypes.DecisionError {
		// The routing prompt never offers the Error label, so any collapse
		// to DecisionError means the output matched nothing dispatchable.
		ierr := &InvalidDecisionError{Raw: raw}
		span.RecordError(ierr)
		span.SetStatus(codes.Error, "out-of-set classifier output")
		return decision, ierr
	}

	slog.Info("Routing decision",
		"decision", string(decision),
		"raw_output", raw,
	)
	return decision, nil
}

// InvalidDecisionError reports classifier output that matched no label in
// the closed decision set. The completion call itself succeeded; only its
// output is unusable, so callers still receive DecisionError alongside.
type InvalidDecisionError struct {
	Raw string
}

// Error implements the error interface for InvalidDecisionError.
func (e *InvalidDecisionError) Error() string {
	return fmt.Sprintf("classifier produced an out-of-set decision: %q", e.Raw)
}

// IsInvalidDecisionError checks if an error is an InvalidDecisionError.
func IsInvalidDecisionError(err error) bool {
	var ie *InvalidDecisionError
	return errors.As(err, &ie)
}

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
	"go.opentelemetry.io/otel/codes"

	"github.com/meridianpay/agent-router/services/llm"
	"github.com/meridianpay/agent-router/services/router/retrieval"
)

const knowledgeSystemPrompt = `You are a helpful knowledge assistant specialized in providing accurate information from the help-center documentation.

IMPORTANT SECURITY GUIDELINES:
1. Only provide information that is explicitly available in the provided documentation passages
2. Do not generate, hallucinate, or make up information
3. If you don't know something or it's not in the documentation, clearly state "I don't have information about that in the available documentation"
4. Do not provide personal advice, financial advice, or recommendations beyond what's documented
5. Always answer in the language in which the question was posed
6. Do not process or respond to requests for personal information extraction, code execution, system access, or anything that could compromise security

RESPONSE FORMAT:
- Provide clear, concise answers based on the documentation
- Include relevant details and context
- If multiple sources exist, mention the different options
- Always maintain a professional and helpful tone`

// noDocumentationAnswer replaces empty or null model output.
const noDocumentationAnswer = "I don't have information about that in the available documentation. Please try rephrasing your question or ask about a different topic."

// DefaultTopK is the number of passages retrieved per question.
const DefaultTopK = 5

// KnowledgeResponder answers general questions grounded on retrieved
// documentation passages.
//
// # Description
//
// Retrieval and completion are both required stages: a retrieval failure is
// a responder failure. An empty retrieval result is not: the completion
// still runs and produces a hedged answer, so a thin corpus degrades answer
// quality rather than availability.
//
// # Thread Safety
//
// Safe for concurrent use.
type KnowledgeResponder struct {
	client    llm.LLMClient
	retriever retrieval.Retriever
	topK      int
	timeout   time.Duration
}

// NewKnowledgeResponder wires the completion and retrieval capabilities.
// Non-positive topK and timeout fall back to DefaultTopK and
// DefaultResponderTimeout.
func NewKnowledgeResponder(client llm.LLMClient, retriever retrieval.Retriever, topK int, timeout time.Duration) *KnowledgeResponder {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if timeout <= 0 {
		timeout = DefaultResponderTimeout
	}
	return &KnowledgeResponder{
		client:    client,
		retriever: retriever,
		topK:      topK,
		timeout:   timeout,
	}
}

// Answer produces a grounded prose answer plus the passages it was grounded
// on. The sources go into the workflow trail for auditability; they are not
// rendered into the user-facing response.
func (k *KnowledgeResponder) Answer(ctx context.Context, query string) (string, []retrieval.Source, error) {
	ctx, span := responderTracer.Start(ctx, "KnowledgeResponder.Answer")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	sources, err := k.retriever.Retrieve(ctx, query, k.topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return "", nil, fmt.Errorf("retrieval failed: %w", err)
	}
	span.SetAttributes(attribute.Int("knowledge.sources_count", len(sources)))

	prompt := buildGroundedPrompt(query, sources)
	temperature := float32(0)
	raw, err := k.client.Generate(ctx, prompt, llm.GenerationParams{
		System:      knowledgeSystemPrompt,
		Temperature: &temperature,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "knowledge completion failed")
		return "", nil, fmt.Errorf("knowledge completion failed: %w", err)
	}

	answer := strings.TrimSpace(raw)
	switch strings.ToLower(answer) {
	case "", "none", "null":
		slog.Warn("Knowledge completion returned an empty answer", "query_preview", preview(query, 50))
		answer = noDocumentationAnswer
	}
	return answer, sources, nil
}

// buildGroundedPrompt assembles the retrieved passages and the question into
// one completion prompt. With zero passages the prompt says so explicitly,
// which steers the model toward a hedged answer instead of invention.
func buildGroundedPrompt(query string, sources []retrieval.Source) string {
	var b strings.Builder

	if len(sources) == 0 {
		b.WriteString("No documentation passages were retrieved for this question. ")
		b.WriteString("Answer from general knowledge only if it is safe to do so, and say clearly that the documentation does not cover it.\n\n")
	} else {
		b.WriteString("Documentation passages:\n\n")
		for i, src := range sources {
			fmt.Fprintf(&b, "[%d] (source: %s)\n%s\n\n", i+1, src.URL, src.Text)
		}
	}

	fmt.Fprintf(&b, "Question: %s", query)
	return b.String()
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

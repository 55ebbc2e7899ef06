// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package responders

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/meridianpay/agent-router/services/llm"
	"github.com/meridianpay/agent-router/services/router/datatypes"
	"github.com/meridianpay/agent-router/services/router/retrieval"
)

type fakeLLM struct {
	response   string
	err        error
	lastPrompt string
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeRetriever struct {
	sources []retrieval.Source
	err     error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Source, error) {
	return f.sources, f.err
}

// =============================================================================
// MathResponder
// =============================================================================

func TestMathResponder_NumericResult(t *testing.T) {
	m := NewMathResponder(&fakeLLM{response: "45"}, time.Second)

	result, err := m.Solve(context.Background(), "Quanto é 15*3?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "45" {
		t.Errorf("expected 45, got %q", result)
	}
}

func TestMathResponder_TrimsWhitespace(t *testing.T) {
	m := NewMathResponder(&fakeLLM{response: "  3.14\n"}, time.Second)

	result, err := m.Solve(context.Background(), "pi?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "3.14" {
		t.Errorf("expected 3.14, got %q", result)
	}
}

func TestMathResponder_NonNumericOutputIsError(t *testing.T) {
	m := NewMathResponder(&fakeLLM{response: "The answer is forty-five"}, time.Second)

	if _, err := m.Solve(context.Background(), "15*3?"); err == nil {
		t.Error("non-numeric output must be an error")
	}
}

func TestMathResponder_ModelErrorSentinelIsError(t *testing.T) {
	m := NewMathResponder(&fakeLLM{response: "Error"}, time.Second)

	if _, err := m.Solve(context.Background(), "purple + 3?"); err == nil {
		t.Error("an Error sentinel from the model must be an error")
	}
}

func TestMathResponder_BackendFailure(t *testing.T) {
	m := NewMathResponder(&fakeLLM{err: errors.New("timeout")}, time.Second)

	if _, err := m.Solve(context.Background(), "2+2?"); err == nil {
		t.Error("backend failure must surface as an error")
	}
}

// =============================================================================
// KnowledgeResponder
// =============================================================================

func TestKnowledgeResponder_GroundedAnswer(t *testing.T) {
	fake := &fakeLLM{response: "You can pay your bills in the app under Payments."}
	retriever := &fakeRetriever{sources: []retrieval.Source{
		{Text: "Bills are paid under the Payments tab.", URL: "https://help.example.com/bills", Score: 0.91},
	}}
	k := NewKnowledgeResponder(fake, retriever, 5, time.Second)

	answer, sources, err := k.Answer(context.Background(), "How do I pay a bill?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer == "" {
		t.Error("expected a prose answer")
	}
	if len(sources) != 1 {
		t.Errorf("expected the retrieved source back, got %d", len(sources))
	}
	if !strings.Contains(fake.lastPrompt, "Payments tab") {
		t.Error("retrieved passage must be in the completion prompt")
	}
	if !strings.Contains(fake.lastPrompt, "How do I pay a bill?") {
		t.Error("question must be in the completion prompt")
	}
}

func TestKnowledgeResponder_EmptyRetrievalStillAnswers(t *testing.T) {
	fake := &fakeLLM{response: "The documentation does not cover that, but generally speaking..."}
	k := NewKnowledgeResponder(fake, &fakeRetriever{}, 5, time.Second)

	answer, sources, err := k.Answer(context.Background(), "Something obscure?")
	if err != nil {
		t.Fatalf("empty retrieval must not be an error: %v", err)
	}
	if answer == "" {
		t.Error("expected a hedged answer despite zero passages")
	}
	if len(sources) != 0 {
		t.Errorf("expected no sources, got %d", len(sources))
	}
	if !strings.Contains(fake.lastPrompt, "No documentation passages were retrieved") {
		t.Error("prompt must state that retrieval came back empty")
	}
}

func TestKnowledgeResponder_RetrievalFailureIsError(t *testing.T) {
	k := NewKnowledgeResponder(&fakeLLM{response: "x"}, &fakeRetriever{err: errors.New("weaviate down")}, 5, time.Second)

	if _, _, err := k.Answer(context.Background(), "anything"); err == nil {
		t.Error("retrieval failure must surface as an error")
	}
}

func TestKnowledgeResponder_EmptyModelOutputGetsFallbackAnswer(t *testing.T) {
	k := NewKnowledgeResponder(&fakeLLM{response: "None"}, &fakeRetriever{}, 5, time.Second)

	answer, _, err := k.Answer(context.Background(), "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != noDocumentationAnswer {
		t.Errorf("expected the no-documentation fallback, got %q", answer)
	}
}

// =============================================================================
// Converter
// =============================================================================

func TestConverter_ConvertsMathResults(t *testing.T) {
	c := NewConverter(&fakeLLM{response: "15 times 3 is 45."}, time.Second)

	got := c.Convert(context.Background(), datatypes.DecisionMath, "Quanto é 15*3?", "45")
	if got != "15 times 3 is 45." {
		t.Errorf("expected the converted sentence, got %q", got)
	}
}

func TestConverter_KnowledgePassesThroughUnchanged(t *testing.T) {
	fake := &fakeLLM{response: "should never be called"}
	c := NewConverter(fake, time.Second)

	prose := "You can pay bills in the app."
	got := c.Convert(context.Background(), datatypes.DecisionKnowledge, "How?", prose)
	if got != prose {
		t.Errorf("knowledge output must pass through unchanged, got %q", got)
	}
	if fake.lastPrompt != "" {
		t.Error("converter must not call the model for pass-through decisions")
	}
}

func TestConverter_FailureFallsBackToRawResult(t *testing.T) {
	c := NewConverter(&fakeLLM{err: errors.New("timeout")}, time.Second)

	got := c.Convert(context.Background(), datatypes.DecisionMath, "2+2?", "4")
	if got != "4" {
		t.Errorf("conversion failure must return the raw result, got %q", got)
	}
}

func TestConverter_DroppedNumberFallsBackToRawResult(t *testing.T) {
	c := NewConverter(&fakeLLM{response: "The answer is four!"}, time.Second)

	got := c.Convert(context.Background(), datatypes.DecisionMath, "2+2?", "4")
	if got != "4" {
		t.Errorf("a sentence without the number must fall back to the raw result, got %q", got)
	}
}

// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/meridianpay/agent-router/services/llm"
	"github.com/meridianpay/agent-router/services/router/datatypes"
)

// fakeLLM returns a fixed response or error and records the last call.
type fakeLLM struct {
	response   string
	err        error
	lastPrompt string
	lastParams llm.GenerationParams
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	f.lastPrompt = prompt
	f.lastParams = params
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestClassify_MathDecision(t *testing.T) {
	fake := &fakeLLM{response: "MathResponder"}
	c := NewClassifier(fake, time.Second)

	decision, err := c.Classify(context.Background(), "Quanto é 15*3?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != datatypes.DecisionMath {
		t.Errorf("expected MathResponder, got %s", decision)
	}
	if fake.lastPrompt != "Quanto é 15*3?" {
		t.Errorf("message must be passed as the prompt, got %q", fake.lastPrompt)
	}
}

func TestClassify_KnowledgeDecision(t *testing.T) {
	fake := &fakeLLM{response: "  knowledgeresponder\n"}
	c := NewClassifier(fake, time.Second)

	decision, err := c.Classify(context.Background(), "How do I reset my password?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != datatypes.DecisionKnowledge {
		t.Errorf("expected KnowledgeResponder, got %s", decision)
	}
}

func TestClassify_OutOfSetOutputBecomesError(t *testing.T) {
	fake := &fakeLLM{response: "I think this is about the weather"}
	c := NewClassifier(fake, time.Second)

	decision, err := c.Classify(context.Background(), "hello")
	if decision != datatypes.DecisionError {
		t.Errorf("expected Error decision, got %s", decision)
	}
	if !IsInvalidDecisionError(err) {
		t.Fatalf("expected an InvalidDecisionError for unparseable output, got %v", err)
	}
	if !strings.Contains(err.Error(), "weather") {
		t.Errorf("the error must carry the raw output, got %q", err.Error())
	}
}

func TestClassify_BackendFailureBecomesError(t *testing.T) {
	fake := &fakeLLM{err: errors.New("connection refused")}
	c := NewClassifier(fake, time.Second)

	decision, err := c.Classify(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected an error from the failed backend call")
	}
	if IsInvalidDecisionError(err) {
		t.Error("a transport failure must not be reported as an out-of-set decision")
	}
	if decision != datatypes.DecisionError {
		t.Errorf("expected Error decision on failure, got %s", decision)
	}
}

func TestClassify_UsesDeterministicGeneration(t *testing.T) {
	fake := &fakeLLM{response: "MathResponder"}
	c := NewClassifier(fake, time.Second)

	if _, err := c.Classify(context.Background(), "2+2?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.lastParams.Temperature == nil || *fake.lastParams.Temperature != 0 {
		t.Error("classification must run at temperature zero")
	}
	if fake.lastParams.System == "" {
		t.Error("classification must carry the routing system prompt")
	}
}

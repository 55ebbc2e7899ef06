// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// ChatRequest Validation Tests
// =============================================================================

func TestChatRequest_Validate_Success(t *testing.T) {
	req := &ChatRequest{
		Message:        "Quanto é 15*3?",
		UserId:         "client789",
		ConversationId: "conversation-123",
	}
	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request, got error: %v", err)
	}
}

func TestChatRequest_Validate_MissingMessage(t *testing.T) {
	req := &ChatRequest{
		UserId:         "client789",
		ConversationId: "conversation-123",
	}
	if err := req.Validate(); err == nil {
		t.Error("expected error for missing message, got nil")
	}
}

func TestChatRequest_Validate_MissingIdentifiers(t *testing.T) {
	req := &ChatRequest{Message: "hello"}
	if err := req.Validate(); err == nil {
		t.Error("expected error for missing user_id and conversation_id, got nil")
	}
}

func TestChatRequest_Validate_OversizedMessage(t *testing.T) {
	req := &ChatRequest{
		Message:        strings.Repeat("a", MaxMessageContentBytes+1),
		UserId:         "client789",
		ConversationId: "conversation-123",
	}
	if err := req.Validate(); err == nil {
		t.Error("expected error for oversized message, got nil")
	}
}

func TestChatRequest_Validate_ExactlyMaxMessage(t *testing.T) {
	req := &ChatRequest{
		Message:        strings.Repeat("a", MaxMessageContentBytes),
		UserId:         "client789",
		ConversationId: "conversation-123",
	}
	if err := req.Validate(); err != nil {
		t.Errorf("expected message at exactly the size limit to be valid, got: %v", err)
	}
}

func TestChatRequest_Validate_OversizedConversationId(t *testing.T) {
	req := &ChatRequest{
		Message:        "hello",
		UserId:         "client789",
		ConversationId: strings.Repeat("x", MaxIdentifierLength+1),
	}
	if err := req.Validate(); err == nil {
		t.Error("expected error for oversized conversation_id, got nil")
	}
}

// =============================================================================
// Decision Tests
// =============================================================================

func TestParseDecision_CanonicalLabels(t *testing.T) {
	cases := map[string]Decision{
		"MathResponder":       DecisionMath,
		"KnowledgeResponder":  DecisionKnowledge,
		"UnsupportedLanguage": DecisionUnsupportedLanguage,
		"Rejected":            DecisionRejected,
		"Error":               DecisionError,
	}
	for raw, want := range cases {
		if got := ParseDecision(raw); got != want {
			t.Errorf("ParseDecision(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestParseDecision_ToleratesCaseAndProse(t *testing.T) {
	cases := map[string]Decision{
		"  mathresponder  ":                    DecisionMath,
		"The answer is: KNOWLEDGERESPONDER":    DecisionKnowledge,
		"Decision: unsupportedlanguage (sure)": DecisionUnsupportedLanguage,
	}
	for raw, want := range cases {
		if got := ParseDecision(raw); got != want {
			t.Errorf("ParseDecision(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestParseDecision_OutOfSetCollapsesToError(t *testing.T) {
	for _, raw := range []string{"", "WeatherResponder", "42", "I cannot decide"} {
		if got := ParseDecision(raw); got != DecisionError {
			t.Errorf("ParseDecision(%q) = %s, want Error", raw, got)
		}
	}
}

func TestDecision_Valid(t *testing.T) {
	if !DecisionMath.Valid() {
		t.Error("MathResponder must be a valid decision")
	}
	if Decision("Banana").Valid() {
		t.Error("out-of-set decision must not be valid")
	}
}

// =============================================================================
// Exchange Tests
// =============================================================================

func TestNewExchange_PopulatesIdentityAndTimestamp(t *testing.T) {
	before := time.Now().UTC()
	ex := NewExchange("2+2?", "4", DecisionMath, 1500*time.Millisecond)
	after := time.Now().UTC()

	if ex.Id == "" {
		t.Error("exchange id must be generated")
	}
	if ex.Timestamp.Before(before) || ex.Timestamp.After(after) {
		t.Errorf("timestamp %v outside [%v, %v]", ex.Timestamp, before, after)
	}
	if ex.ExecutionMs != 1500 {
		t.Errorf("expected 1500ms execution time, got %d", ex.ExecutionMs)
	}
	if ex.Responder != DecisionMath {
		t.Errorf("expected MathResponder, got %s", ex.Responder)
	}
}

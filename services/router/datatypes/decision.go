// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "strings"

// Decision is the closed set of routing outcomes. Exactly one Decision is
// produced per request, even on failure (mapped to DecisionError).
//
// The set is closed on purpose: the orchestrator switches exhaustively over
// it, and adding a responder means extending this type plus the conversion
// allow-list explicitly. There is no silent fallthrough.
type Decision string

const (
	// DecisionMath routes the query to the math responder.
	DecisionMath Decision = "MathResponder"

	// DecisionKnowledge routes the query to the knowledge responder.
	DecisionKnowledge Decision = "KnowledgeResponder"

	// DecisionUnsupportedLanguage answers with a fixed canned response and
	// bypasses every responder.
	DecisionUnsupportedLanguage Decision = "UnsupportedLanguage"

	// DecisionRejected refuses the request with a canned refusal. Reserved
	// for operator policy; the classifier never produces it today.
	DecisionRejected Decision = "Rejected"

	// DecisionError is the safe default for any failure: classifier output
	// outside the closed set, capability failures, timeouts.
	DecisionError Decision = "Error"
)

// Valid reports whether d is a member of the closed decision set.
func (d Decision) Valid() bool {
	switch d {
	case DecisionMath, DecisionKnowledge, DecisionUnsupportedLanguage, DecisionRejected, DecisionError:
		return true
	}
	return false
}

// ParseDecision maps raw classifier output onto the closed decision set.
//
// Matching is case-insensitive and tolerant of surrounding prose: the first
// known label contained in the cleaned output wins. Anything that matches no
// label collapses to DecisionError, never to a guess.
func ParseDecision(raw string) Decision {
	cleaned := strings.ToLower(strings.TrimSpace(raw))

	ordered := []struct {
		keyword  string
		decision Decision
	}{
		{"mathresponder", DecisionMath},
		{"knowledgeresponder", DecisionKnowledge},
		{"unsupportedlanguage", DecisionUnsupportedLanguage},
		{"rejected", DecisionRejected},
		{"error", DecisionError},
	}
	for _, entry := range ordered {
		if strings.Contains(cleaned, entry.keyword) {
			return entry.decision
		}
	}
	return DecisionError
}

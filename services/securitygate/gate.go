// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package securitygate evaluates raw user input before any routing decision
// is made. It combines three checks into a single pass:
//
//  1. Total sanitization: disallowed markup is stripped, keeping a small
//     inline-formatting allow-list. Sanitization never fails, whatever the
//     input.
//  2. Character-set validation: letters outside the supported alphabets
//     (English/Portuguese Latin script) yield an UnsupportedLanguage verdict.
//  3. Trigger-phrase scanning: the sanitized text is scanned, case
//     insensitively, against an embedded bilingual phrase policy. The first
//     match (by group priority, then document order) wins.
//
// The phrase policy is loaded once at startup from the binary-embedded YAML
// and is immutable afterwards; the gate holds no mutable state and is safe
// for concurrent use.
package securitygate

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"

	"github.com/meridianpay/agent-router/services/securitygate/enforcement"
)

// Gate evaluates raw user input against the sanitization and phrase policy.
type Gate struct {
	sanitizer *bluemonday.Policy
	groups    []PatternGroup
}

// NewGate initializes a Gate from the embedded phrase policy.
//
// It builds the sanitizer allow-list (b, i, u, em, strong, p, br, span, with
// class attributes on span and p), parses the embedded YAML, and sorts the
// phrase groups by priority. Returns an error only if the embedded policy is
// malformed, which indicates a broken build.
func NewGate() (*Gate, error) {
	file, err := ParsePatternFile(enforcement.InjectionPatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to parse the embedded injection patterns: %w", err)
	}
	if len(file.Groups) == 0 {
		return nil, fmt.Errorf("embedded injection pattern policy is empty")
	}

	sanitizer := bluemonday.NewPolicy()
	sanitizer.AllowElements("b", "i", "u", "em", "strong", "p", "br", "span")
	sanitizer.AllowAttrs("class").OnElements("span", "p")

	return &Gate{
		sanitizer: sanitizer,
		groups:    file.Groups,
	}, nil
}

// Evaluate sanitizes rawText and returns the sanitized form with a verdict.
//
// # Description
//
// Evaluate is total: it never fails, including on binary or garbage input.
// Unknown tags and attributes are removed, not rejected. The verdict
// precedence is UnsupportedLanguage over Suspicious over Clean; a query in
// an unsupported script short-circuits before phrase scanning.
//
// A Suspicious verdict carries the matched phrase for audit logging. Callers
// must not surface the match to the user.
//
// # Inputs
//
//   - rawText: Raw user input, untrusted.
//
// # Outputs
//
//   - string: The sanitized text. Always usable, possibly empty.
//   - Verdict: Clean, Suspicious (with match), or UnsupportedLanguage.
func (g *Gate) Evaluate(rawText string) (string, Verdict) {
	sanitized := strings.TrimSpace(g.sanitizer.Sanitize(rawText))

	if !supportedAlphabet(sanitized) {
		slog.Warn("Query rejected by language validation",
			"query_preview", preview(sanitized, 50),
		)
		return sanitized, Verdict{Kind: VerdictUnsupportedLanguage}
	}

	if match := g.scan(sanitized); match != nil {
		slog.Warn("Suspicious content detected in query",
			"group", match.Group,
			"pattern_id", match.PhraseId,
			"query_preview", preview(sanitized, 50),
		)
		return sanitized, Verdict{Kind: VerdictSuspicious, Match: match}
	}

	return sanitized, Verdict{Kind: VerdictClean}
}

// scan returns the first matching phrase by group priority, or nil.
func (g *Gate) scan(text string) *PhraseMatch {
	lowered := strings.ToLower(text)
	for _, group := range g.groups {
		for _, phrase := range group.Phrases {
			if strings.Contains(lowered, phrase.lowered) {
				return &PhraseMatch{
					Group:    group.Name,
					PhraseId: phrase.Id,
					Phrase:   phrase.Phrase,
				}
			}
		}
	}
	return nil
}

// supportedAlphabet reports whether every letter in text belongs to the
// Latin script. Digits, punctuation, mathematical symbols, whitespace, and
// combining marks are always permitted; only letters from other scripts
// (Cyrillic, CJK, Arabic, ...) disqualify the text.
func supportedAlphabet(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return false
		}
	}
	return true
}

// preview truncates s for log output without splitting a rune.
func preview(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

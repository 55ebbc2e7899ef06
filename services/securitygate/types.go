// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package securitygate

import (
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// VerdictKind is the closed set of security gate outcomes.
type VerdictKind string

const (
	// VerdictClean means the input passed sanitization with no findings.
	VerdictClean VerdictKind = "Clean"

	// VerdictSuspicious means a trigger phrase matched. Suspicious input is
	// not rejected; routing is downgraded to the knowledge responder.
	VerdictSuspicious VerdictKind = "Suspicious"

	// VerdictUnsupportedLanguage means the input contains characters outside
	// the supported alphabets. The request is answered with a canned
	// response and never reaches the classifier.
	VerdictUnsupportedLanguage VerdictKind = "UnsupportedLanguage"
)

// Verdict is the result of evaluating one piece of user input.
//
// Match is populated only when Kind is VerdictSuspicious. It identifies the
// phrase that fired for audit logging; it must never be included in a user
// facing response.
type Verdict struct {
	Kind  VerdictKind
	Match *PhraseMatch
}

// PhraseMatch records which configured phrase triggered a Suspicious verdict.
type PhraseMatch struct {
	Group    string `json:"group"`
	PhraseId string `json:"phrase_id"`
	Phrase   string `json:"phrase"`
}

// PatternFile is the root of the embedded phrase policy document.
type PatternFile struct {
	Groups []PatternGroup `yaml:"groups"`
}

// PatternGroup is a named, prioritized set of trigger phrases.
type PatternGroup struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Priority    int      `yaml:"priority"`
	Phrases     []Phrase `yaml:"phrases"`
}

// Phrase is a single case-insensitive trigger substring.
//
// The lowered form is computed once at load time; scanning never lowercases
// the policy on the hot path.
type Phrase struct {
	Id      string `yaml:"id"`
	Phrase  string `yaml:"phrase"`
	lowered string `yaml:"-"`
}

// ParsePatternFile unmarshals a phrase policy document, precomputes lowered
// phrase forms, and sorts groups from highest to lowest priority.
func ParsePatternFile(raw []byte) (*PatternFile, error) {
	var file PatternFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	for i := range file.Groups {
		for j := range file.Groups[i].Phrases {
			p := &file.Groups[i].Phrases[j]
			p.lowered = strings.ToLower(p.Phrase)
		}
	}
	sort.Slice(file.Groups, func(i, j int) bool {
		return file.Groups[i].Priority > file.Groups[j].Priority
	})
	return &file, nil
}

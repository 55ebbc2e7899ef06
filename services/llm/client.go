// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides the completion capability consumed by the router
// service. It defines a narrow client interface and concrete backends
// (OpenAI, Ollama) selected at startup.
//
// The interface is deliberately small: the classifier and responders shape
// their own prompts and parse their own results. Backends only move text.
package llm

import "context"

// GenerationParams carries per-call generation options.
//
// System is the system prompt for the call. Nil pointer fields fall back to
// backend defaults.
type GenerationParams struct {
	System      string   `json:"system,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// LLMClient defines the standard interface for any completion backend.
//
// # Description
//
// Generate sends a single prompt and returns the model's text. Callers own
// timeouts and cancellation via ctx; a deadline exceeded surfaces as an
// ordinary error like any other capability failure.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrieval provides the semantic retrieval capability consumed by
// the knowledge responder. The vector index build and query mechanics live
// behind the Retriever interface; the production implementation is backed by
// Weaviate.
package retrieval

import "context"

// Source is one retrieved passage with its provenance and relevance score.
//
// Sources are retained in the workflow trail for auditability but are not
// rendered into user-facing responses by the conversion layer.
type Source struct {
	Text   string  `json:"text"`
	URL    string  `json:"url"`
	Corpus string  `json:"corpus"`
	Score  float64 `json:"score"`
}

// Retriever defines the contract for semantic document retrieval.
//
// # Description
//
// Retrieve returns up to topK passages semantically nearest to query,
// ordered by descending relevance. An empty result is a valid outcome, not
// an error: the knowledge responder still answers (hedged) when the corpus
// has nothing relevant.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Source, error)
}

// NoopRetriever always retrieves nothing. Used when no vector database is
// configured: the knowledge responder then answers unguided but the service
// stays up.
type NoopRetriever struct{}

// Retrieve implements the Retriever interface.
func (NoopRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Source, error) {
	return nil, nil
}

var _ Retriever = NoopRetriever{}

// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var retrievalTracer = otel.Tracer("agentrouter.retrieval")

// HelpArticleClass is the Weaviate class holding the indexed help-center
// corpus. The build pipeline that populates it is external to this service.
const HelpArticleClass = "HelpArticle"

// WeaviateRetriever implements Retriever on top of a Weaviate nearText query.
type WeaviateRetriever struct {
	client    *weaviate.Client
	className string
}

// NewWeaviateRetriever wraps an initialized Weaviate client. The client must
// not be nil; connection failures surface on the first Retrieve call.
func NewWeaviateRetriever(client *weaviate.Client) *WeaviateRetriever {
	return &WeaviateRetriever{
		client:    client,
		className: HelpArticleClass,
	}
}

// Retrieve implements the Retriever interface.
//
// # Description
//
// Runs a nearText query against the help-article class and maps the results
// to Sources with their certainty as the relevance score. Zero hits return
// an empty slice and a nil error.
//
// # Inputs
//
//   - ctx: Carries the caller's timeout; there is no internal deadline.
//   - query: The sanitized user query.
//   - topK: Maximum number of passages to return.
//
// # Outputs
//
//   - []Source: Passages ordered by descending relevance. May be empty.
//   - error: Non-nil if the query or response parsing failed.
func (r *WeaviateRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Source, error) {
	ctx, span := retrievalTracer.Start(ctx, "WeaviateRetriever.Retrieve")
	defer span.End()
	span.SetAttributes(
		attribute.String("retrieval.class", r.className),
		attribute.Int("retrieval.top_k", topK),
	)

	nearText := r.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "url"},
		{Name: "corpus"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	resp, err := r.client.GraphQL().Get().
		WithClassName(r.className).
		WithNearText(nearText).
		WithFields(fields...).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "weaviate query failed")
		return nil, fmt.Errorf("weaviate query failed: %w", err)
	}

	parsed, err := ParseGraphQLResponse[articleQueryResponse](resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "response parsing failed")
		return nil, fmt.Errorf("failed to parse retrieval response: %w", err)
	}

	results := parsed.Get[r.className]
	sources := make([]Source, 0, len(results))
	for _, doc := range results {
		sources = append(sources, Source{
			Text:   doc.Text,
			URL:    doc.URL,
			Corpus: doc.Corpus,
			Score:  doc.Additional.Certainty,
		})
	}

	span.SetAttributes(attribute.Int("retrieval.sources_count", len(sources)))
	slog.Debug("Retrieved passages", "class", r.className, "count", len(sources))
	return sources, nil
}

var _ Retriever = (*WeaviateRetriever)(nil)

// articleQueryResponse mirrors the GraphQL Get payload for the article class.
// The class name is a dynamic JSON key, hence the map.
type articleQueryResponse struct {
	Get map[string][]articleResult `json:"Get"`
}

type articleResult struct {
	Text       string `json:"text"`
	URL        string `json:"url"`
	Corpus     string `json:"corpus"`
	Additional struct {
		Certainty float64 `json:"certainty"`
	} `json:"_additional"`
}

// ParseGraphQLResponse unmarshals a Weaviate GraphQL response into a typed
// structure. Weaviate returns GraphQL errors in-band with a 200 status, so
// they are checked here rather than at the transport layer.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("GraphQL error: %s", resp.Errors[0].Message)
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}
	return &result, nil
}

// EnsureSchema creates the article class if it does not exist yet. Called
// once at startup when a Weaviate client is configured; existing classes are
// left untouched.
func EnsureSchema(client *weaviate.Client) error {
	class := articleSchema()

	_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(context.Background())
	if err == nil {
		slog.Info("Schema already exists", "class", class.Class)
		return nil
	}

	slog.Info("Schema not found, creating it...", "class", class.Class)
	if err := client.Schema().ClassCreator().WithClass(class).Do(context.Background()); err != nil {
		return fmt.Errorf("failed to create schema for class %s: %w", class.Class, err)
	}
	slog.Info("Successfully created schema", "class", class.Class)
	return nil
}

func articleSchema() *models.Class {
	return &models.Class{
		Class:       HelpArticleClass,
		Description: "Indexed help-center passages used for grounded answers.",
		Vectorizer:  "text2vec-transformers",
		Properties: []*models.Property{
			{
				Name:        "text",
				DataType:    []string{"text"},
				Description: "The passage text",
			},
			{
				Name:        "url",
				DataType:    []string{"text"},
				Description: "Canonical URL of the source page",
			},
			{
				Name:        "corpus",
				DataType:    []string{"text"},
				Description: "Originating corpus tag",
			},
		},
	}
}

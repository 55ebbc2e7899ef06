// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianpay/agent-router/services/llm"
	"github.com/meridianpay/agent-router/services/router/classifier"
	"github.com/meridianpay/agent-router/services/router/conversation"
	"github.com/meridianpay/agent-router/services/router/datatypes"
	"github.com/meridianpay/agent-router/services/router/orchestration"
	"github.com/meridianpay/agent-router/services/router/responders"
	"github.com/meridianpay/agent-router/services/router/retrieval"
	"github.com/meridianpay/agent-router/services/securitygate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockLLMClient returns a fixed response for every Generate call.
type MockLLMClient struct {
	Response string
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	return m.Response, nil
}

type emptyRetriever struct{}

func (emptyRetriever) Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Source, error) {
	return nil, nil
}

// createTestPipeline builds a pipeline whose classifier always answers with
// classifierResponse, backed by an in-memory store.
func createTestPipeline(t *testing.T, classifierResponse string) (*orchestration.Pipeline, conversation.Store) {
	t.Helper()

	gate, err := securitygate.NewGate()
	require.NoError(t, err)

	store := conversation.NewMemoryStore(conversation.DefaultTTL)
	t.Cleanup(func() { _ = store.Close() })

	pipeline := orchestration.NewPipeline(
		gate,
		classifier.NewClassifier(&MockLLMClient{Response: classifierResponse}, time.Second),
		responders.NewMathResponder(&MockLLMClient{Response: "45"}, time.Second),
		responders.NewKnowledgeResponder(&MockLLMClient{Response: "Documented answer."}, emptyRetriever{}, 5, time.Second),
		responders.NewConverter(&MockLLMClient{Response: "The answer is 45."}, time.Second),
		store,
		nil,
	)
	return pipeline, store
}

func createTestRouter(pipeline *orchestration.Pipeline) *gin.Engine {
	router := gin.New()
	router.POST("/v1/chat", HandleChat(pipeline))
	router.GET("/v1/chat/history/:conversationId", GetHistory(pipeline))
	router.GET("/v1/chat/user/:userId/conversations", ListConversations(pipeline))
	return router
}

func performChat(t *testing.T, router *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// POST /v1/chat
// =============================================================================

func TestHandleChat_MathFlow(t *testing.T) {
	pipeline, _ := createTestPipeline(t, "MathResponder")
	router := createTestRouter(pipeline)

	w := performChat(t, router, datatypes.ChatRequest{
		Message:        "Quanto é 15*3?",
		UserId:         "client789",
		ConversationId: "conv-1",
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, datatypes.DecisionMath, resp.RouterDecision)
	assert.Equal(t, "45", resp.SourceAgentResponse)
	assert.Contains(t, resp.Response, "45")
	assert.NotEmpty(t, resp.AgentWorkflow)
}

func TestHandleChat_ErrorDecisionIsStillHTTP200(t *testing.T) {
	pipeline, _ := createTestPipeline(t, "no idea what this is")
	router := createTestRouter(pipeline)

	w := performChat(t, router, datatypes.ChatRequest{
		Message:        "hello",
		UserId:         "client789",
		ConversationId: "conv-1",
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, datatypes.DecisionError, resp.RouterDecision)
	assert.Equal(t, orchestration.GenericErrorMessage, resp.Response)
}

func TestHandleChat_UnsupportedLanguageIsHTTP200(t *testing.T) {
	pipeline, _ := createTestPipeline(t, "KnowledgeResponder")
	router := createTestRouter(pipeline)

	w := performChat(t, router, datatypes.ChatRequest{
		Message:        "Что такое платёж?",
		UserId:         "client789",
		ConversationId: "conv-1",
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, datatypes.DecisionUnsupportedLanguage, resp.RouterDecision)
	assert.Equal(t, orchestration.UnsupportedLanguageMessage, resp.Response)
}

func TestHandleChat_MalformedBody(t *testing.T) {
	pipeline, _ := createTestPipeline(t, "KnowledgeResponder")
	router := createTestRouter(pipeline)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/chat", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChat_EmptyMessage(t *testing.T) {
	pipeline, _ := createTestPipeline(t, "KnowledgeResponder")
	router := createTestRouter(pipeline)

	w := performChat(t, router, datatypes.ChatRequest{
		Message:        "   ",
		UserId:         "client789",
		ConversationId: "conv-1",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChat_MissingIdentifiers(t *testing.T) {
	pipeline, _ := createTestPipeline(t, "KnowledgeResponder")
	router := createTestRouter(pipeline)

	w := performChat(t, router, map[string]string{"message": "hello"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =============================================================================
// GET /v1/chat/history/:conversationId
// =============================================================================

func TestGetHistory_ReturnsPersistedExchanges(t *testing.T) {
	pipeline, _ := createTestPipeline(t, "KnowledgeResponder")
	router := createTestRouter(pipeline)

	performChat(t, router, datatypes.ChatRequest{
		Message:        "How do I pay a bill?",
		UserId:         "client789",
		ConversationId: "conv-hist",
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/chat/history/conv-hist", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.History, 1)
	assert.Equal(t, "How do I pay a bill?", resp.History[0].UserMessage)
	assert.Equal(t, "Documented answer.", resp.History[0].AgentResponse)
}

func TestGetHistory_UnknownConversationIsEmptyList(t *testing.T) {
	pipeline, _ := createTestPipeline(t, "KnowledgeResponder")
	router := createTestRouter(pipeline)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/chat/history/never-created", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"history":[]`)
}

// =============================================================================
// GET /v1/chat/user/:userId/conversations
// =============================================================================

func TestListConversations_TracksChattedConversations(t *testing.T) {
	pipeline, _ := createTestPipeline(t, "KnowledgeResponder")
	router := createTestRouter(pipeline)

	performChat(t, router, datatypes.ChatRequest{
		Message:        "hello",
		UserId:         "client789",
		ConversationId: "conv-a",
	})
	performChat(t, router, datatypes.ChatRequest{
		Message:        "hello again",
		UserId:         "client789",
		ConversationId: "conv-b",
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/chat/user/client789/conversations", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.ConversationsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.ElementsMatch(t, []string{"conv-a", "conv-b"}, resp.ConversationIds)
}

func TestListConversations_UnknownUserIsEmptyList(t *testing.T) {
	pipeline, _ := createTestPipeline(t, "KnowledgeResponder")
	router := createTestRouter(pipeline)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/chat/user/nobody/conversations", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"conversation_ids":[]`)
}

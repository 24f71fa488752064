// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianCare/datatypes"
	"github.com/AleutianAI/AleutianCare/evidence"
	"github.com/AleutianAI/AleutianCare/llm"
	"github.com/AleutianAI/AleutianCare/services"
	"github.com/AleutianAI/AleutianCare/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fakes
// =============================================================================

type stubDetector struct{}

func (stubDetector) Detect(text string) (string, error) { return "sv", nil }

type stubTranslator struct{}

func (stubTranslator) Translate(ctx context.Context, text, from, to string) (string, error) {
	return text, nil
}

type stubSearcher struct{}

func (stubSearcher) Search(ctx context.Context, query string) ([]datatypes.SearchResult, error) {
	return []datatypes.SearchResult{
		{URL: "https://1177.se/feber", Title: "Feber", Snippet: "om feber", Domain: "1177.se"},
	}, nil
}

type stubLLM struct {
	answer string
	err    error
}

func (s stubLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	return s.answer, s.err
}

func (s stubLLM) Chat(ctx context.Context, messages []llm.Message, params llm.GenerationParams) (string, error) {
	return s.answer, s.err
}

func newTestRouter(t *testing.T, llmErr error) (*gin.Engine, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	convStore := store.NewMemoryStore()
	care := services.NewCareService(
		stubDetector{}, stubTranslator{}, stubSearcher{},
		evidence.NewAggregator(6000),
		stubLLM{answer: "Feber är vanligt [1].", err: llmErr},
		convStore,
		services.Options{PivotLanguage: "sv", SearchRetries: 1},
	)

	router := gin.New()
	router.POST("/v1/query", HandleQuery(care))
	router.GET("/v1/conversations/:conversationId/history", GetConversationHistory(convStore))
	router.DELETE("/v1/conversations/:conversationId", DeleteConversation(convStore))
	return router, convStore
}

func postQuery(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/query", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// Tests
// =============================================================================

// TestHandleQuery_Success verifies the happy-path response shape.
func TestHandleQuery_Success(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	w := postQuery(router, `{"query": "Vad är feber?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Feber är vanligt [1].", resp.Answer)
	assert.Equal(t, "sv", resp.DetectedLanguage)
	assert.NotEmpty(t, resp.ConversationId)
	assert.Equal(t, []string{"https://1177.se/feber"}, resp.SourcesUsed)
}

// TestHandleQuery_BadRequests verifies 400 on malformed or empty input.
func TestHandleQuery_BadRequests(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	cases := []struct {
		name string
		body string
	}{
		{"not json", "not json"},
		{"missing query", `{}`},
		{"empty query", `{"query": ""}`},
		{"whitespace query", `{"query": "   "}`},
		{"oversized query", fmt.Sprintf(`{"query": %q}`, strings.Repeat("a", datatypes.MaxQueryBytes+1))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postQuery(router, tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

// TestHandleQuery_SynthesisFailure verifies 503 when the LLM is down.
func TestHandleQuery_SynthesisFailure(t *testing.T) {
	router, _ := newTestRouter(t, fmt.Errorf("model down"))

	w := postQuery(router, `{"query": "Vad är feber?"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "currently unavailable")
}

// TestHandleQuery_FollowUp verifies the conversation id round-trips.
func TestHandleQuery_FollowUp(t *testing.T) {
	router, convStore := newTestRouter(t, nil)

	w := postQuery(router, `{"query": "Vad är feber?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var first datatypes.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	w = postQuery(router, fmt.Sprintf(`{"query": "Och hos barn?", "conversation_id": %q}`, first.ConversationId))
	require.Equal(t, http.StatusOK, w.Code)
	var second datatypes.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, first.ConversationId, second.ConversationId)

	turns, err := convStore.History(context.Background(), first.ConversationId)
	require.NoError(t, err)
	assert.Len(t, turns, 4)
}

// TestGetConversationHistory verifies the history endpoint and its 404.
func TestGetConversationHistory(t *testing.T) {
	router, convStore := newTestRouter(t, nil)

	id, err := convStore.GetOrCreate(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, convStore.Append(context.Background(), id,
		datatypes.NewTurn(datatypes.RoleUser, "fråga")))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/conversations/"+id+"/history", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fråga")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/conversations/does-not-exist/history", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestDeleteConversation verifies deletion and its idempotency over HTTP.
func TestDeleteConversation(t *testing.T) {
	router, convStore := newTestRouter(t, nil)

	id, err := convStore.GetOrCreate(context.Background(), "")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/v1/conversations/"+id, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	_, err = convStore.History(context.Background(), id)
	assert.True(t, store.IsNotFound(err))
}

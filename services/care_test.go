// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianCare/datatypes"
	"github.com/AleutianAI/AleutianCare/evidence"
	"github.com/AleutianAI/AleutianCare/llm"
	"github.com/AleutianAI/AleutianCare/search"
	"github.com/AleutianAI/AleutianCare/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeDetector struct {
	lang string
	err  error
}

func (f *fakeDetector) Detect(text string) (string, error) {
	return f.lang, f.err
}

// fakeTranslator prefixes text with "to:" so tests can see which
// direction ran. failFor makes a specific target language fail.
type fakeTranslator struct {
	failFor string
	calls   int
}

func (f *fakeTranslator) Translate(ctx context.Context, text, from, to string) (string, error) {
	if from == to {
		return text, nil
	}
	f.calls++
	if to == f.failFor {
		return "", fmt.Errorf("translator down")
	}
	return to + ":" + text, nil
}

type fakeSearcher struct {
	results  []datatypes.SearchResult
	errs     []error // consumed per call, nil entries succeed
	queries  []string
	attempts int
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]datatypes.SearchResult, error) {
	f.queries = append(f.queries, query)
	f.attempts++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.results, nil
}

// fakeSynthLLM answers with canned text; Chat records the messages.
type fakeSynthLLM struct {
	answer   string
	err      error
	chats    int
	messages []llm.Message
}

func (f *fakeSynthLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	return f.answer, f.err
}

func (f *fakeSynthLLM) Chat(ctx context.Context, messages []llm.Message, params llm.GenerationParams) (string, error) {
	f.chats++
	f.messages = messages
	return f.answer, f.err
}

func approvedResults() []datatypes.SearchResult {
	return []datatypes.SearchResult{
		{URL: "https://1177.se/feber", Title: "Feber", Snippet: "om feber", Domain: "1177.se"},
		{URL: "https://fass.se/alvedon", Title: "Alvedon", Snippet: "om alvedon", Domain: "fass.se"},
	}
}

type testPipeline struct {
	service    *CareService
	detector   *fakeDetector
	translator *fakeTranslator
	searcher   *fakeSearcher
	llm        *fakeSynthLLM
	store      *store.MemoryStore
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()
	p := &testPipeline{
		detector:   &fakeDetector{lang: "en"},
		translator: &fakeTranslator{},
		searcher:   &fakeSearcher{results: approvedResults()},
		llm:        &fakeSynthLLM{answer: "Feber är vanligt [1]."},
		store:      store.NewMemoryStore(),
	}
	p.service = NewCareService(
		p.detector, p.translator, p.searcher,
		evidence.NewAggregator(6000), p.llm, p.store,
		Options{PivotLanguage: "sv", DefaultLanguage: "en", SearchRetries: 2},
	)
	return p
}

// =============================================================================
// Scenarios
// =============================================================================

// TestAnswer_HappyPath verifies the full pipeline for an English query.
func TestAnswer_HappyPath(t *testing.T) {
	p := newTestPipeline(t)

	resp, err := p.service.Answer(context.Background(), &datatypes.QueryRequest{Query: "What is a fever?"})
	require.NoError(t, err)

	assert.Equal(t, "en", resp.DetectedLanguage)
	assert.NotEmpty(t, resp.ConversationId)
	// Query was translated to the pivot language before search.
	require.Len(t, p.searcher.queries, 1)
	assert.Equal(t, "sv:What is a fever?", p.searcher.queries[0])
	// The answer was translated back to English.
	assert.Equal(t, "en:Feber är vanligt [1].", resp.Answer)
	// Only the cited source is reported.
	assert.Equal(t, []string{"https://1177.se/feber"}, resp.SourcesUsed)

	// Both turns were recorded, user turn holding the original text.
	turns, err := p.store.History(context.Background(), resp.ConversationId)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, datatypes.RoleUser, turns[0].Role)
	assert.Equal(t, "What is a fever?", turns[0].Content)
	assert.Equal(t, datatypes.RoleAssistant, turns[1].Role)
}

// TestAnswer_PivotLanguageQuery verifies Swedish queries skip translation
// in both directions.
func TestAnswer_PivotLanguageQuery(t *testing.T) {
	p := newTestPipeline(t)
	p.detector.lang = "sv"

	resp, err := p.service.Answer(context.Background(), &datatypes.QueryRequest{Query: "Vad är feber?"})
	require.NoError(t, err)

	assert.Equal(t, "Vad är feber?", p.searcher.queries[0])
	assert.Equal(t, "Feber är vanligt [1].", resp.Answer)
	assert.Zero(t, p.translator.calls)
}

// TestAnswer_CitationsAreSubsetOfEvidence verifies cited URLs always come
// from the retrieved evidence.
func TestAnswer_CitationsAreSubsetOfEvidence(t *testing.T) {
	p := newTestPipeline(t)
	// The model cites one valid and one out-of-range source.
	p.llm.answer = "Se [2] och [9]."

	resp, err := p.service.Answer(context.Background(), &datatypes.QueryRequest{Query: "fever?"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://fass.se/alvedon"}, resp.SourcesUsed)

	evidenceURLs := map[string]struct{}{}
	for _, r := range approvedResults() {
		evidenceURLs[r.URL] = struct{}{}
	}
	for _, cited := range resp.SourcesUsed {
		_, ok := evidenceURLs[cited]
		assert.True(t, ok, "cited URL %s not in evidence", cited)
	}
}

// TestAnswer_NoEvidence verifies the canned answer path: no synthesis
// call, no sources, outcome still recorded in the conversation.
func TestAnswer_NoEvidence(t *testing.T) {
	p := newTestPipeline(t)
	p.searcher.results = nil

	resp, err := p.service.Answer(context.Background(), &datatypes.QueryRequest{Query: "obscure question"})
	require.NoError(t, err)

	assert.Zero(t, p.llm.chats, "synthesis must not run without evidence")
	assert.Empty(t, resp.SourcesUsed)
	assert.Contains(t, resp.Answer, "en:", "canned answer still translated to the user's language")

	turns, err := p.store.History(context.Background(), resp.ConversationId)
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

// TestAnswer_SearchDownDegrades verifies a dead search backend yields an
// explanatory answer instead of an error.
func TestAnswer_SearchDownDegrades(t *testing.T) {
	p := newTestPipeline(t)
	p.searcher.errs = []error{
		&search.UnavailableError{StatusCode: 503, Retryable: true},
		&search.UnavailableError{StatusCode: 503, Retryable: true},
	}

	resp, err := p.service.Answer(context.Background(), &datatypes.QueryRequest{Query: "fever?"})
	require.NoError(t, err)

	assert.Equal(t, 2, p.searcher.attempts, "retryable failures are retried")
	assert.Zero(t, p.llm.chats)
	assert.Empty(t, resp.SourcesUsed)
	assert.NotEmpty(t, resp.Answer)
}

// TestAnswer_SearchNonRetryableFailsFast verifies non-retryable search
// errors skip the backoff loop.
func TestAnswer_SearchNonRetryableFailsFast(t *testing.T) {
	p := newTestPipeline(t)
	p.searcher.errs = []error{
		&search.UnavailableError{StatusCode: 401, Retryable: false},
	}

	resp, err := p.service.Answer(context.Background(), &datatypes.QueryRequest{Query: "fever?"})
	require.NoError(t, err)
	assert.Equal(t, 1, p.searcher.attempts)
	assert.Empty(t, resp.SourcesUsed)
}

// TestAnswer_SearchRecoversAfterRetry verifies a transient failure
// followed by success produces a normal answer.
func TestAnswer_SearchRecoversAfterRetry(t *testing.T) {
	p := newTestPipeline(t)
	p.searcher.errs = []error{
		&search.UnavailableError{StatusCode: 502, Retryable: true},
		nil,
	}

	resp, err := p.service.Answer(context.Background(), &datatypes.QueryRequest{Query: "fever?"})
	require.NoError(t, err)
	assert.Equal(t, 2, p.searcher.attempts)
	assert.Equal(t, []string{"https://1177.se/feber"}, resp.SourcesUsed)
}

// TestAnswer_SynthesisFailure verifies a failing LLM surfaces as a
// SynthesisError and records no turns.
func TestAnswer_SynthesisFailure(t *testing.T) {
	p := newTestPipeline(t)
	p.llm.err = fmt.Errorf("model down")

	convId, err := p.store.GetOrCreate(context.Background(), "")
	require.NoError(t, err)

	_, err = p.service.Answer(context.Background(),
		&datatypes.QueryRequest{Query: "fever?", ConversationId: convId})
	require.Error(t, err)
	assert.True(t, IsSynthesisError(err))

	turns, err := p.store.History(context.Background(), convId)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

// TestAnswer_QueryTranslationFailureSearchesOriginal verifies the
// pipeline falls back to the untranslated query.
func TestAnswer_QueryTranslationFailureSearchesOriginal(t *testing.T) {
	p := newTestPipeline(t)
	p.translator.failFor = "sv"
	// The answer comes back in the pivot language; translating back to
	// English still works (failFor only breaks the sv direction).
	resp, err := p.service.Answer(context.Background(), &datatypes.QueryRequest{Query: "What is a fever?"})
	require.NoError(t, err)

	assert.Equal(t, "What is a fever?", p.searcher.queries[0])
	assert.Equal(t, "en:Feber är vanligt [1].", resp.Answer)
}

// TestAnswer_AnswerTranslationFailureFallsBackToPivot verifies the pivot
// answer is returned with a note when translating back fails.
func TestAnswer_AnswerTranslationFailureFallsBackToPivot(t *testing.T) {
	p := newTestPipeline(t)
	p.translator.failFor = "en"

	resp, err := p.service.Answer(context.Background(), &datatypes.QueryRequest{Query: "What is a fever?"})
	require.NoError(t, err)

	assert.Contains(t, resp.Answer, "Feber är vanligt [1].")
	assert.Contains(t, resp.Answer, "Translation to English unavailable")
}

// TestAnswer_DetectionFailureUsesDefault verifies undetectable input is
// treated as the default language.
func TestAnswer_DetectionFailureUsesDefault(t *testing.T) {
	p := newTestPipeline(t)
	p.detector.lang = ""
	p.detector.err = fmt.Errorf("cannot detect")

	resp, err := p.service.Answer(context.Background(), &datatypes.QueryRequest{Query: "??!"})
	require.NoError(t, err)
	assert.Equal(t, "en", resp.DetectedLanguage)
}

// TestAnswer_ConversationContinuity verifies a follow-up rides on the
// same conversation and earlier turns reach the synthesis prompt.
func TestAnswer_ConversationContinuity(t *testing.T) {
	p := newTestPipeline(t)

	first, err := p.service.Answer(context.Background(), &datatypes.QueryRequest{Query: "What is a fever?"})
	require.NoError(t, err)

	_, err = p.service.Answer(context.Background(),
		&datatypes.QueryRequest{Query: "And in children?", ConversationId: first.ConversationId})
	require.NoError(t, err)

	turns, err := p.store.History(context.Background(), first.ConversationId)
	require.NoError(t, err)
	assert.Len(t, turns, 4)

	// The second synthesis saw the first exchange as chat history.
	var sawFirstQuestion bool
	for _, m := range p.llm.messages {
		if m.Role == datatypes.RoleUser && strings.Contains(m.Content, "What is a fever?") {
			sawFirstQuestion = true
		}
	}
	assert.True(t, sawFirstQuestion)
}

// TestAnswer_CanceledContextRecordsNothing verifies a canceled request
// leaves the conversation untouched.
func TestAnswer_CanceledContextRecordsNothing(t *testing.T) {
	p := newTestPipeline(t)
	convId, err := p.store.GetOrCreate(context.Background(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.service.Answer(ctx, &datatypes.QueryRequest{Query: "fever?", ConversationId: convId})
	require.Error(t, err)

	turns, err := p.store.History(context.Background(), convId)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package services holds the query pipeline that turns a user question
// into a citation-grounded answer.
//
// The pipeline is: detect the user's language, translate the question to
// the pivot language of the approved sources, search those sources,
// aggregate the results into an evidence bundle, synthesize a grounded
// answer, translate it back, and record both turns in the conversation.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianCare/datatypes"
	"github.com/AleutianAI/AleutianCare/evidence"
	"github.com/AleutianAI/AleutianCare/language"
	"github.com/AleutianAI/AleutianCare/llm"
	"github.com/AleutianAI/AleutianCare/observability"
	"github.com/AleutianAI/AleutianCare/search"
	"github.com/AleutianAI/AleutianCare/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var careTracer = otel.Tracer("aleutian.care.services")

// Searcher is the slice of the search client the pipeline needs.
type Searcher interface {
	Search(ctx context.Context, query string) ([]datatypes.SearchResult, error)
}

// Canned pivot-language answers for the two degraded outcomes. They are
// translated to the user's language like any other answer.
const (
	noEvidenceAnswer = "Jag hittade ingen information om detta i de godkända medicinska källorna " +
		"(1177, Socialstyrelsen, Viss, Fass). Jag kan därför inte besvara frågan. " +
		"Kontakta 1177 Vårdguiden om du behöver medicinsk rådgivning."

	searchDownAnswer = "Söktjänsten mot de godkända medicinska källorna är inte tillgänglig just nu. " +
		"Försök igen om en stund, eller kontakta 1177 Vårdguiden om ditt ärende är brådskande."
)

// Options tunes the pipeline.
type Options struct {
	// PivotLanguage is the language of the approved sources. Queries are
	// translated into it before search.
	PivotLanguage string

	// DefaultLanguage is assumed when detection fails on non-empty input.
	DefaultLanguage string

	// SearchRetries bounds retry attempts for retryable search failures.
	SearchRetries int

	// Timeouts are per-stage deadlines. Zero values mean no extra
	// deadline beyond the request context.
	DetectTimeout     time.Duration
	TranslateTimeout  time.Duration
	SearchTimeout     time.Duration
	SynthesizeTimeout time.Duration
}

// CareService runs the health-question pipeline.
//
// # Thread Safety
//
// Safe for concurrent use. Per-conversation ordering is delegated to the
// conversation store.
type CareService struct {
	detector   language.Detector
	translator language.Translator
	searcher   Searcher
	aggregator *evidence.Aggregator
	llmClient  llm.Client
	convStore  store.ConversationStore
	opts       Options
}

// NewCareService wires the pipeline's collaborators.
func NewCareService(
	detector language.Detector,
	translator language.Translator,
	searcher Searcher,
	aggregator *evidence.Aggregator,
	llmClient llm.Client,
	convStore store.ConversationStore,
	opts Options,
) *CareService {
	if opts.PivotLanguage == "" {
		opts.PivotLanguage = "sv"
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en"
	}
	if opts.SearchRetries <= 0 {
		opts.SearchRetries = 3
	}
	return &CareService{
		detector:   detector,
		translator: translator,
		searcher:   searcher,
		aggregator: aggregator,
		llmClient:  llmClient,
		convStore:  convStore,
		opts:       opts,
	}
}

// Answer runs the full pipeline for one query.
//
// # Description
//
// Degraded outcomes still produce a useful response: a search outage
// yields a "source unavailable" answer, and empty evidence yields a "no
// approved source" answer without ever calling the synthesis model, so a
// response can never cite a source that was not retrieved.
//
// # Errors
//
// Returns a *SynthesisError when answer generation fails, or a context
// error when the caller's deadline expires. Store failures on the final
// append are logged, not returned; the user already has their answer.
func (s *CareService) Answer(ctx context.Context, req *datatypes.QueryRequest) (*datatypes.QueryResponse, error) {
	ctx, span := careTracer.Start(ctx, "CareService.Answer")
	defer span.End()

	convId, err := s.convStore.GetOrCreate(ctx, req.ConversationId)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conversation: %w", err)
	}
	span.SetAttributes(attribute.String("conversation.id", convId))

	userLang := s.detectLanguage(ctx, req.Query)
	span.SetAttributes(attribute.String("query.language", userLang))

	pivotQuery := s.translateQuery(ctx, req.Query, userLang)

	history, err := s.convStore.History(ctx, convId)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	answer, sources, outcome, err := s.resolve(ctx, pivotQuery, history)
	if err != nil {
		observability.QueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	answer = s.translateAnswer(ctx, answer, userLang)

	// A canceled request must not leave a half-recorded exchange behind.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := s.convStore.Append(ctx, convId,
		datatypes.NewTurn(datatypes.RoleUser, req.Query),
		datatypes.NewTurn(datatypes.RoleAssistant, answer),
	); err != nil {
		slog.Error("Failed to record conversation turns", "conversation_id", convId, "error", err)
	}

	observability.QueriesTotal.WithLabelValues(outcome).Inc()
	observability.EvidenceSourcesPerQuery.Observe(float64(len(sources)))

	return &datatypes.QueryResponse{
		Answer:           answer,
		ConversationId:   convId,
		SourcesUsed:      sources,
		DetectedLanguage: userLang,
	}, nil
}

// resolve produces the pivot-language answer and the cited source URLs,
// degrading instead of failing when search is down or empty.
func (s *CareService) resolve(ctx context.Context, pivotQuery string, history []datatypes.Turn) (answer string, sources []string, outcome string, err error) {
	results, err := s.searchWithRetry(ctx, pivotQuery)
	if err != nil {
		if ctx.Err() != nil {
			return "", nil, "", ctx.Err()
		}
		slog.Error("Search unavailable after retries", "error", err)
		return searchDownAnswer, []string{}, "degraded", nil
	}

	bundle, err := s.aggregate(ctx, results)
	if err != nil {
		if errors.Is(err, evidence.ErrNoEvidence) {
			slog.Info("No evidence from approved sources")
			return noEvidenceAnswer, []string{}, "no_evidence", nil
		}
		return "", nil, "", err
	}

	answer, sources, err = s.synthesize(ctx, pivotQuery, bundle, history)
	if err != nil {
		return "", nil, "", err
	}
	return answer, sources, "ok", nil
}

// detectLanguage identifies the query's language, falling back to the
// configured default when detection fails on non-empty input. The
// handler rejects empty input before the pipeline runs.
func (s *CareService) detectLanguage(ctx context.Context, query string) string {
	defer s.timeStage("detect")()

	lang, err := s.detector.Detect(query)
	if err != nil {
		slog.Warn("Language detection failed, using default", "default", s.opts.DefaultLanguage, "error", err)
		return s.opts.DefaultLanguage
	}
	return lang
}

// translateQuery moves the query into the pivot language, retrying once.
// If both attempts fail the original text is searched as-is; a
// native-language search against the approved domains can still hit.
func (s *CareService) translateQuery(ctx context.Context, query, userLang string) string {
	if userLang == s.opts.PivotLanguage {
		return query
	}
	defer s.timeStage("translate_query")()
	ctx, cancel := s.stageContext(ctx, s.opts.TranslateTimeout)
	defer cancel()

	for attempt := 0; attempt < 2; attempt++ {
		translated, err := s.translator.Translate(ctx, query, userLang, s.opts.PivotLanguage)
		if err == nil {
			return translated
		}
		slog.Warn("Query translation failed", "attempt", attempt+1, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	slog.Warn("Searching with the untranslated query")
	return query
}

// translateAnswer moves the pivot-language answer into the user's
// language, retrying once. When both attempts fail the pivot answer is
// returned with a short note in front so the user knows why the language
// changed.
func (s *CareService) translateAnswer(ctx context.Context, answer, userLang string) string {
	if userLang == s.opts.PivotLanguage {
		return answer
	}
	defer s.timeStage("translate_answer")()
	ctx, cancel := s.stageContext(ctx, s.opts.TranslateTimeout)
	defer cancel()

	for attempt := 0; attempt < 2; attempt++ {
		translated, err := s.translator.Translate(ctx, answer, s.opts.PivotLanguage, userLang)
		if err == nil {
			return translated
		}
		slog.Warn("Answer translation failed", "attempt", attempt+1, "error", err)
		if ctx.Err() != nil {
			break
		}
	}

	observability.TranslationFallbacksTotal.Inc()
	note := fmt.Sprintf("[Translation to %s unavailable; answer follows in %s.]\n\n",
		language.LanguageName(userLang), language.LanguageName(s.opts.PivotLanguage))
	return note + answer
}

// searchWithRetry calls the search client with bounded exponential
// backoff (1s, 2s, 4s) on retryable failures, honoring ctx.Done.
func (s *CareService) searchWithRetry(ctx context.Context, query string) ([]datatypes.SearchResult, error) {
	defer s.timeStage("search")()
	ctx, cancel := s.stageContext(ctx, s.opts.SearchTimeout)
	defer cancel()

	var lastErr error
	backoff := time.Second
	for attempt := 0; attempt < s.opts.SearchRetries; attempt++ {
		results, err := s.searcher.Search(ctx, query)
		if err == nil {
			return results, nil
		}
		lastErr = err

		var unavailable *search.UnavailableError
		if !errors.As(err, &unavailable) || !unavailable.Retryable {
			return nil, err
		}
		if attempt == s.opts.SearchRetries-1 {
			break
		}
		slog.Warn("Retryable search failure, backing off", "attempt", attempt+1, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

// aggregate builds the evidence bundle.
func (s *CareService) aggregate(ctx context.Context, results []datatypes.SearchResult) (*evidence.Bundle, error) {
	defer s.timeStage("aggregate")()
	return s.aggregator.Aggregate(ctx, results)
}

// synthesize generates the grounded pivot-language answer.
func (s *CareService) synthesize(ctx context.Context, query string, bundle *evidence.Bundle, history []datatypes.Turn) (string, []string, error) {
	defer s.timeStage("synthesize")()
	ctx, cancel := s.stageContext(ctx, s.opts.SynthesizeTimeout)
	defer cancel()
	return synthesize(ctx, s.llmClient, query, bundle, history)
}

// stageContext layers a stage deadline on top of the request context.
func (s *CareService) stageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// timeStage records a stage's wall-clock duration on return.
func (s *CareService) timeStage(stage string) func() {
	start := time.Now()
	return func() {
		observability.StageDurationSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

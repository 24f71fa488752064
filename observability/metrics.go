// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability holds the Prometheus metrics for the query
// pipeline. Metrics are registered with promauto at init and exposed on
// /metrics by the router.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts handled queries by outcome
	// (ok, degraded, no_evidence, error).
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aleutian",
			Subsystem: "care",
			Name:      "queries_total",
			Help:      "Total health queries handled, by outcome.",
		},
		[]string{"outcome"},
	)

	// StageDurationSeconds tracks per-stage pipeline latency
	// (detect, translate_query, search, aggregate, synthesize,
	// translate_answer).
	StageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aleutian",
			Subsystem: "care",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// SearchResultsFiltered counts results dropped by the domain
	// allow-list check.
	SearchResultsFiltered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aleutian",
			Subsystem: "care",
			Name:      "search_results_filtered_total",
			Help:      "Search results dropped for being outside the approved domains.",
		},
	)

	// TranslationFallbacksTotal counts queries answered in the pivot
	// language because translating the answer back failed.
	TranslationFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aleutian",
			Subsystem: "care",
			Name:      "translation_fallbacks_total",
			Help:      "Answers returned in the pivot language after translation failure.",
		},
	)

	// ConversationsActive gauges live conversations in the store.
	ConversationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aleutian",
			Subsystem: "care",
			Name:      "conversations_active",
			Help:      "Conversations currently held in the store.",
		},
	)

	// EvidenceSourcesPerQuery tracks how many deduplicated sources each
	// answered query was grounded on.
	EvidenceSourcesPerQuery = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "aleutian",
			Subsystem: "care",
			Name:      "evidence_sources_per_query",
			Help:      "Deduplicated evidence sources per answered query.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 8, 10},
		},
	)
)

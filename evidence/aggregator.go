// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package evidence turns raw search results into a bounded, deduplicated
// evidence bundle for answer synthesis.
//
// Search may return the same page more than once and may return more text
// than a synthesis prompt can carry. The aggregator deduplicates by URL
// (first occurrence wins, so engine ranking is preserved), optionally
// enriches each source with fetched page content, and enforces a total
// character budget across the bundle.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/AleutianAI/AleutianCare/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var evidenceTracer = otel.Tracer("aleutian.care.evidence")

// ErrNoEvidence is returned when no approved source yielded any usable
// content for the query.
var ErrNoEvidence = errors.New("no evidence from approved sources")

// Source is one deduplicated piece of evidence tied to an approved URL.
type Source struct {
	URL     string
	Title   string
	Domain  string
	Content string
}

// Bundle is the evidence for one query, in engine-rank order.
type Bundle struct {
	Sources []Source
}

// URLs returns the bundle's source URLs in rank order.
func (b *Bundle) URLs() []string {
	out := make([]string, 0, len(b.Sources))
	for _, s := range b.Sources {
		out = append(out, s.URL)
	}
	return out
}

// URLSet returns the bundle's URLs as a membership set.
func (b *Bundle) URLSet() map[string]struct{} {
	set := make(map[string]struct{}, len(b.Sources))
	for _, s := range b.Sources {
		set[s.URL] = struct{}{}
	}
	return set
}

// PageFetcher retrieves readable text for a URL. Implementations should
// bound how much they read; the aggregator enforces the overall budget but
// fetching an unbounded body first is wasted work.
type PageFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Aggregator builds evidence bundles from search results.
//
// # Thread Safety
//
// Safe for concurrent use; Aggregate carries no state across calls.
type Aggregator struct {
	fetcher     PageFetcher
	charBudget  int
	fetchLimit  int
	parallelism int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithPageFetcher enables full-page enrichment. Without it the aggregator
// uses search snippets only.
func WithPageFetcher(f PageFetcher, parallelism int) Option {
	return func(a *Aggregator) {
		a.fetcher = f
		if parallelism > 0 {
			a.parallelism = parallelism
		}
	}
}

// WithFetchLimit caps the characters kept from a single fetched page.
func WithFetchLimit(limit int) Option {
	return func(a *Aggregator) {
		if limit > 0 {
			a.fetchLimit = limit
		}
	}
}

// NewAggregator builds an aggregator with the given total character
// budget. A non-positive budget falls back to 6000 characters, roughly
// what a synthesis prompt has room for after instructions and history.
func NewAggregator(charBudget int, opts ...Option) *Aggregator {
	if charBudget <= 0 {
		charBudget = 6000
	}
	a := &Aggregator{
		charBudget:  charBudget,
		fetchLimit:  2000,
		parallelism: 3,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate builds a budgeted evidence bundle from search results.
//
// # Description
//
// Results are deduplicated by URL with the first occurrence winning, then
// optionally enriched with fetched page text, then trimmed to the
// character budget. The last source that crosses the budget is truncated
// on a rune boundary rather than dropped, so its URL stays citable.
//
// # Errors
//
// Returns ErrNoEvidence when results is empty or every result lacks
// content. A fetch failure on an individual page is not an error; the
// source falls back to its snippet.
func (a *Aggregator) Aggregate(ctx context.Context, results []datatypes.SearchResult) (*Bundle, error) {
	ctx, span := evidenceTracer.Start(ctx, "evidence.Aggregator.Aggregate")
	defer span.End()

	sources := dedupe(results)
	if len(sources) == 0 {
		return nil, ErrNoEvidence
	}

	if a.fetcher != nil {
		a.enrich(ctx, sources)
	}

	kept := make([]Source, 0, len(sources))
	used := 0
	for _, s := range sources {
		if s.Content == "" {
			continue
		}
		remaining := a.charBudget - used
		if remaining <= 0 {
			break
		}
		if len(s.Content) > remaining {
			s.Content = truncateRunes(s.Content, remaining)
		}
		used += len(s.Content)
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		return nil, ErrNoEvidence
	}

	span.SetAttributes(
		attribute.Int("evidence.sources", len(kept)),
		attribute.Int("evidence.chars", used),
	)
	return &Bundle{Sources: kept}, nil
}

// dedupe collapses results to one Source per URL, preserving rank order.
func dedupe(results []datatypes.SearchResult) []Source {
	seen := make(map[string]struct{}, len(results))
	out := make([]Source, 0, len(results))
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		if _, dup := seen[r.URL]; dup {
			continue
		}
		seen[r.URL] = struct{}{}
		out = append(out, Source{
			URL:     r.URL,
			Title:   r.Title,
			Domain:  r.Domain,
			Content: strings.TrimSpace(r.Snippet),
		})
	}
	return out
}

// enrich replaces snippets with fetched page text where the fetch
// succeeds. Failures leave the snippet in place.
func (a *Aggregator) enrich(ctx context.Context, sources []Source) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)
	for i := range sources {
		g.Go(func() error {
			text, err := a.fetcher.FetchText(gctx, sources[i].URL)
			if err != nil || strings.TrimSpace(text) == "" {
				return nil
			}
			text = strings.TrimSpace(text)
			if len(text) > a.fetchLimit {
				text = truncateRunes(text, a.fetchLimit)
			}
			sources[i].Content = text
			return nil
		})
	}
	// Workers never return errors; Wait only observes ctx cancellation.
	_ = g.Wait()
}

// truncateRunes cuts s to at most max bytes without splitting a rune.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Render formats the bundle as a numbered evidence block for a synthesis
// prompt. Numbering starts at 1 and matches rank order, so "[2]" in an
// answer refers to the second source here.
func (b *Bundle) Render() string {
	var sb strings.Builder
	for i, s := range b.Sources {
		fmt.Fprintf(&sb, "[%d] %s (%s)\nURL: %s\n%s\n\n", i+1, s.Title, s.Domain, s.URL, s.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}

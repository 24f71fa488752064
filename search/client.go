// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search provides the domain-restricted web search client.
//
// The client searches via SerpAPI (Google engine) with the approved
// medical domains expressed as a site: filter, then re-checks every
// returned URL against the allow-list before handing results to the rest
// of the pipeline. The post-filter is the system's safety guarantee: the
// site: filter in the query is a hint to the engine, the allow-list check
// here is the invariant.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianCare/datatypes"
	"github.com/AleutianAI/AleutianCare/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var searchTracer = otel.Tracer("aleutian.care.search")

// DefaultBaseURL is the SerpAPI search endpoint.
const DefaultBaseURL = "https://serpapi.com/search"

// =============================================================================
// Errors
// =============================================================================

// UnavailableError reports a search service failure.
//
// # Fields
//
//   - StatusCode: HTTP status from the search API, or 0 for transport
//     failures.
//   - Message: Error detail from the API response body or transport error.
//   - Retryable: Whether retrying with backoff may succeed.
type UnavailableError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

// Error implements the error interface for UnavailableError.
func (e *UnavailableError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("search unavailable: %s", e.Message)
	}
	return fmt.Sprintf("search unavailable (status %d): %s", e.StatusCode, e.Message)
}

// IsUnavailable checks if an error is a *UnavailableError.
func IsUnavailable(err error) bool {
	_, ok := err.(*UnavailableError)
	return ok
}

// =============================================================================
// Client
// =============================================================================

// Config holds construction parameters for the search client.
//
// AllowedDomains is injected rather than compiled in so the allow-list can
// be validated and tested independently of the client.
type Config struct {
	// APIKey authenticates against SerpAPI. Required outside tests.
	APIKey string

	// BaseURL overrides the SerpAPI endpoint. Defaults to DefaultBaseURL.
	BaseURL string

	// AllowedDomains is the approved source allow-list. Must be non-empty.
	AllowedDomains []string

	// MaxResults bounds the number of hits requested and returned.
	// Defaults to 5.
	MaxResults int

	// RequestsPerSecond rate-limits outbound calls. Defaults to 2.
	RequestsPerSecond float64

	// HTTPClient overrides the transport. Defaults to a 10s-timeout client.
	HTTPClient *http.Client
}

// Client issues domain-restricted searches. Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	allowed    []string
	maxResults int
	limiter    *rate.Limiter
}

// NewClient builds a search client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if len(cfg.AllowedDomains) == 0 {
		return nil, fmt.Errorf("search client requires a non-empty domain allow-list")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	allowed := make([]string, 0, len(cfg.AllowedDomains))
	for _, d := range cfg.AllowedDomains {
		allowed = append(allowed, strings.ToLower(strings.TrimSpace(d)))
	}

	return &Client{
		httpClient: httpClient,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		allowed:    allowed,
		maxResults: maxResults,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// AllowedDomains returns a copy of the configured allow-list.
func (c *Client) AllowedDomains() []string {
	out := make([]string, len(c.allowed))
	copy(out, c.allowed)
	return out
}

// serpResponse mirrors the subset of the SerpAPI payload the client reads.
type serpResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"organic_results"`
}

// Search runs a domain-restricted search for query.
//
// # Description
//
// The query is suffixed with a (site:a OR site:b ...) filter built from the
// allow-list, and every returned result is re-checked against the same
// allow-list before it is returned. Results that fail the check, including
// URLs that cannot be parsed at all, are dropped, never passed through.
//
// An empty result slice with a nil error is a valid outcome and means no
// approved source matched.
//
// # Errors
//
// Returns *UnavailableError on transport failures and non-200 responses.
// The Retryable flag is set for 429/502/503/504 and transport errors.
func (c *Client) Search(ctx context.Context, query string) ([]datatypes.SearchResult, error) {
	ctx, span := searchTracer.Start(ctx, "search.Client.Search")
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}

	searchQuery := fmt.Sprintf("%s (%s)", query, c.domainFilter())
	span.SetAttributes(attribute.String("search.query", searchQuery))

	params := url.Values{}
	params.Set("q", searchQuery)
	params.Set("api_key", c.apiKey)
	params.Set("num", strconv.Itoa(c.maxResults))
	params.Set("engine", "google")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, &UnavailableError{Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UnavailableError{Message: fmt.Sprintf("failed to read response: %v", err), Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		span.SetAttributes(attribute.Int("search.status_code", resp.StatusCode))
		span.SetStatus(codes.Error, "non-200 from search API")
		return nil, &UnavailableError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Retryable:  isRetryableStatusCode(resp.StatusCode),
		}
	}

	var parsed serpResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &UnavailableError{Message: fmt.Sprintf("failed to parse response: %v", err), Retryable: false}
	}

	results := make([]datatypes.SearchResult, 0, len(parsed.OrganicResults))
	filtered := 0
	for _, r := range parsed.OrganicResults {
		if len(results) >= c.maxResults {
			break
		}
		if r.Snippet == "" {
			continue
		}
		domain, ok := c.matchAllowedDomain(r.Link)
		if !ok {
			filtered++
			observability.SearchResultsFiltered.Inc()
			slog.Warn("Dropping search result outside the approved domains", "url", r.Link)
			continue
		}
		results = append(results, datatypes.SearchResult{
			URL:     r.Link,
			Title:   r.Title,
			Snippet: r.Snippet,
			Domain:  domain,
		})
	}

	span.SetAttributes(
		attribute.Int("search.results", len(results)),
		attribute.Int("search.filtered", filtered),
	)
	slog.Info("Search completed", "results", len(results), "filtered", filtered)
	return results, nil
}

// domainFilter renders the allow-list as a search-engine site: filter.
func (c *Client) domainFilter() string {
	parts := make([]string, 0, len(c.allowed))
	for _, d := range c.allowed {
		parts = append(parts, "site:"+d)
	}
	return strings.Join(parts, " OR ")
}

// matchAllowedDomain reports whether raw belongs to an approved domain and
// returns the matched domain. Any parse failure counts as not allowed;
// the check fails closed.
func (c *Client) matchAllowedDomain(raw string) (string, bool) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, d := range c.allowed {
		if host == d || strings.HasSuffix(host, "."+d) {
			return d, true
		}
	}
	return "", false
}

// isRetryableStatusCode reports whether a search API status is worth a
// retry with backoff.
func isRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package evidence

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxFetchBytes bounds how much of a page body is read. Medical article
// pages on the approved sources are well under this.
const maxFetchBytes = 256 * 1024

// HTTPFetcher implements PageFetcher over plain HTTP GET with a crude
// HTML-to-text reduction. It is deliberately simple: the approved sources
// are server-rendered article pages where tag stripping recovers the
// prose well enough for a synthesis prompt.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher builds a fetcher. A nil client gets a 10s timeout.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPFetcher{
		client:    client,
		userAgent: "AleutianCare/1.0 (+https://aleutian.ai)",
	}
}

// FetchText implements the PageFetcher interface.
func (f *HTTPFetcher) FetchText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create fetch request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("page fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read page body: %w", err)
	}
	return stripHTML(string(body)), nil
}

// stripHTML reduces an HTML document to whitespace-normalized text.
// Script and style blocks are removed whole; all other tags are dropped.
func stripHTML(doc string) string {
	doc = removeBlock(doc, "script")
	doc = removeBlock(doc, "style")

	var sb strings.Builder
	inTag := false
	for _, r := range doc {
		switch {
		case r == '<':
			inTag = true
			sb.WriteByte(' ')
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// removeBlock strips <tag ...>...</tag> sections, case-insensitively.
func removeBlock(doc, tag string) string {
	lower := strings.ToLower(doc)
	open := "<" + tag
	close := "</" + tag + ">"
	var sb strings.Builder
	for {
		start := strings.Index(lower, open)
		if start == -1 {
			sb.WriteString(doc)
			return sb.String()
		}
		end := strings.Index(lower[start:], close)
		if end == -1 {
			sb.WriteString(doc[:start])
			return sb.String()
		}
		end = start + end + len(close)
		sb.WriteString(doc[:start])
		doc = doc[end:]
		lower = lower[end:]
	}
}

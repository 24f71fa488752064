// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// SearchResult is one ranked hit from the domain-restricted search.
//
// # Description
//
// Results carry their matched approved domain so later stages never have to
// re-derive it from the URL. The search client guarantees that Domain is a
// member of the configured allow-list; results that fail that check are
// discarded before they leave the client.
//
// # Fields
//
//   - URL: Full page URL as returned by the search engine.
//   - Title: Page title.
//   - Snippet: Search-engine snippet for the page.
//   - Domain: The approved domain the URL matched (e.g. "1177.se").
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Domain  string `json:"domain"`
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import "time"

type CareConfig struct {
	// Server: HTTP listener settings
	Server ServerConfig `yaml:"server"`

	// Search: approved-source search settings
	Search SearchConfig `yaml:"search"`

	// Language: pivot and default language codes
	Language LanguageConfig `yaml:"language"`

	// Evidence: aggregation budget and page fetching
	Evidence EvidenceConfig `yaml:"evidence"`

	// Store: conversation persistence and expiry
	Store StoreConfig `yaml:"store"`

	// Timeouts: per-stage deadlines for the query pipeline
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

type ServerConfig struct {
	Port int `yaml:"port"` // e.g. 8080
}

type SearchConfig struct {
	// AllowedDomains is the approved medical source allow-list. Answers
	// only ever cite these.
	AllowedDomains []string `yaml:"allowed_domains"`

	MaxResults        int     `yaml:"max_results"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries"`
}

type LanguageConfig struct {
	// Pivot is the language of the approved sources; queries are
	// translated into it before search.
	Pivot string `yaml:"pivot"` // e.g. "sv"

	// Default is assumed when detection cannot determine a language.
	Default string `yaml:"default"` // e.g. "en"
}

type EvidenceConfig struct {
	CharBudget     int  `yaml:"char_budget"`
	FetchPages     bool `yaml:"fetch_pages"`
	FetchParallel  int  `yaml:"fetch_parallel"`
	FetchCharLimit int  `yaml:"fetch_char_limit"`
}

type StoreConfig struct {
	// Path is the Badger directory. Empty disables persistence and the
	// store is memory-only.
	Path string `yaml:"path"`

	MaxTurns        int           `yaml:"max_turns"`
	TTL             time.Duration `yaml:"ttl"`
	JanitorInterval time.Duration `yaml:"janitor_interval"`
}

type TimeoutConfig struct {
	Detect     time.Duration `yaml:"detect"`
	Translate  time.Duration `yaml:"translate"`
	Search     time.Duration `yaml:"search"`
	Synthesize time.Duration `yaml:"synthesize"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() CareConfig {
	return CareConfig{
		Server: ServerConfig{
			Port: 8080,
		},
		Search: SearchConfig{
			AllowedDomains: []string{
				"1177.se",
				"socialstyrelsen.se",
				"viss.nu",
				"fass.se",
			},
			MaxResults:        5,
			RequestsPerSecond: 2,
			MaxRetries:        3,
		},
		Language: LanguageConfig{
			Pivot:   "sv",
			Default: "en",
		},
		Evidence: EvidenceConfig{
			CharBudget:     6000,
			FetchPages:     false,
			FetchParallel:  3,
			FetchCharLimit: 2000,
		},
		Store: StoreConfig{
			Path:            "",
			MaxTurns:        40,
			TTL:             24 * time.Hour,
			JanitorInterval: time.Hour,
		},
		Timeouts: TimeoutConfig{
			Detect:     2 * time.Second,
			Translate:  20 * time.Second,
			Search:     30 * time.Second,
			Synthesize: 60 * time.Second,
		},
	}
}

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

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

// TestCreateDefault verifies default config creation.
func TestCreateDefault(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "care-config-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configPath := filepath.Join(tempDir, ".aleutian", "care.yaml")

	err = createDefault(configPath)
	if err != nil {
		t.Fatalf("createDefault() failed: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	var cfg CareConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}

	// Verify some defaults
	if cfg.Language.Pivot != "sv" {
		t.Errorf("Language.Pivot = %q, want %q", cfg.Language.Pivot, "sv")
	}
	if len(cfg.Search.AllowedDomains) != 4 {
		t.Errorf("len(Search.AllowedDomains) = %d, want 4", len(cfg.Search.AllowedDomains))
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
}

// TestDefaultConfig_ApprovedDomains verifies the shipped allow-list.
func TestDefaultConfig_ApprovedDomains(t *testing.T) {
	cfg := DefaultConfig()

	want := map[string]bool{
		"1177.se":            false,
		"socialstyrelsen.se": false,
		"viss.nu":            false,
		"fass.se":            false,
	}
	for _, d := range cfg.Search.AllowedDomains {
		if _, ok := want[d]; !ok {
			t.Errorf("unexpected default domain %q", d)
			continue
		}
		want[d] = true
	}
	for d, seen := range want {
		if !seen {
			t.Errorf("default allow-list is missing %q", d)
		}
	}
}

// TestApplyEnvOverrides verifies deployment env vars win over the file.
func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CARE_PORT", "9999")
	t.Setenv("CARE_STORE_PATH", "/data/conversations")

	cfg := DefaultConfig()
	applyEnvOverrides(&cfg)

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Store.Path != "/data/conversations" {
		t.Errorf("Store.Path = %q, want /data/conversations", cfg.Store.Path)
	}
}

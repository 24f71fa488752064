// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package language provides language detection and translation for the
// query pipeline.
//
// Questions may arrive in any language while the approved medical sources
// are Swedish. This package detects the user's language (lingua-go) and
// translates between it and the pivot language (LLM-backed translator).
package language

import (
	"fmt"
	"strings"

	"github.com/pemistahl/lingua-go"
)

// Detector identifies the language of a piece of text.
type Detector interface {
	// Detect returns the ISO 639-1 code (lowercase) of the text's language.
	// Returns a *DetectionError when the text is empty or the language
	// cannot be determined.
	Detect(text string) (string, error)
}

// DetectionError is returned when language detection fails.
type DetectionError struct {
	Reason string
}

// Error implements the error interface for DetectionError.
func (e *DetectionError) Error() string {
	return fmt.Sprintf("language detection failed: %s", e.Reason)
}

// IsDetectionError checks if an error is a *DetectionError.
func IsDetectionError(err error) bool {
	_, ok := err.(*DetectionError)
	return ok
}

// supportedLanguages is the detection candidate set. It matches the
// languages the translator is exercised with; restricting the set keeps
// detection accurate on short medical queries.
var supportedLanguages = []lingua.Language{
	lingua.English,
	lingua.Swedish,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Russian,
	lingua.Japanese,
	lingua.Chinese,
}

// LinguaDetector implements Detector using the lingua-go statistical
// detector. Safe for concurrent use.
type LinguaDetector struct {
	detector lingua.LanguageDetector
}

// NewLinguaDetector builds a detector over the supported language set.
// Construction loads language models; create once at startup and reuse.
func NewLinguaDetector() *LinguaDetector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(supportedLanguages...).
		Build()
	return &LinguaDetector{detector: detector}
}

// Detect implements the Detector interface.
func (d *LinguaDetector) Detect(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", &DetectionError{Reason: "empty input"}
	}

	lang, exists := d.detector.DetectLanguageOf(trimmed)
	if !exists {
		return "", &DetectionError{Reason: "no language could be determined"}
	}
	return strings.ToLower(lang.IsoCode639_1().String()), nil
}

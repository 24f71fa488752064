// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package language

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianCare/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var translatorTracer = otel.Tracer("aleutian.care.language")

// Translator converts text between two languages.
//
// # Description
//
// Translate is an identity operation when from and to are equal, so
// callers can invoke it unconditionally. Implementations must not mutate
// any shared state; translation is a pure call to an external service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Translator interface {
	// Translate converts text from the `from` language to the `to` language
	// (ISO 639-1 codes). Returns a *TranslationError on service failure.
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// TranslationError is returned when the translation service fails.
type TranslationError struct {
	From string
	To   string
	Err  error
}

// Error implements the error interface for TranslationError.
func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation %s -> %s failed: %v", e.From, e.To, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *TranslationError) Unwrap() error {
	return e.Err
}

// IsTranslationError checks if an error is a *TranslationError.
func IsTranslationError(err error) bool {
	_, ok := err.(*TranslationError)
	return ok
}

// languageNames maps ISO 639-1 codes to readable names for prompting.
var languageNames = map[string]string{
	"en": "English",
	"sv": "Swedish",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ru": "Russian",
	"ja": "Japanese",
	"zh": "Chinese",
}

// LanguageName returns a readable name for an ISO 639-1 code.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

// LLMTranslator implements Translator with an LLM call, which keeps
// medical terminology accurate in a way generic phrase translation does
// not.
type LLMTranslator struct {
	client llm.Client
}

// NewLLMTranslator wraps an LLM client as a Translator.
func NewLLMTranslator(client llm.Client) *LLMTranslator {
	return &LLMTranslator{client: client}
}

// Translate implements the Translator interface.
func (t *LLMTranslator) Translate(ctx context.Context, text, from, to string) (string, error) {
	if from == to || strings.TrimSpace(text) == "" {
		return text, nil
	}

	ctx, span := translatorTracer.Start(ctx, "LLMTranslator.Translate")
	defer span.End()
	span.SetAttributes(
		attribute.String("translate.from", from),
		attribute.String("translate.to", to),
	)

	prompt := fmt.Sprintf(
		"Translate the following medical text from %s to %s. "+
			"Keep medical terminology accurate and natural.\n\n"+
			"Text: %s\n\n"+
			"Respond ONLY with the %s translation, nothing else.",
		LanguageName(from), LanguageName(to), text, LanguageName(to),
	)

	var temp float32 = 0
	out, err := t.client.Generate(ctx, prompt, llm.GenerationParams{Temperature: &temp})
	if err != nil {
		span.RecordError(err)
		slog.Error("Translation call failed", "from", from, "to", to, "error", err)
		return "", &TranslationError{From: from, To: to, Err: err}
	}

	translated := strings.TrimSpace(out)
	// Strip stray markdown emphasis some models wrap answers in.
	translated = strings.Trim(translated, "*")
	if translated == "" {
		return "", &TranslationError{From: from, To: to, Err: fmt.Errorf("empty translation")}
	}
	return translated, nil
}

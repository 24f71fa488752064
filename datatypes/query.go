// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides request, response, and domain types for the
// AleutianCare service.
//
// This file contains the query request/response types for the
// POST /v1/query endpoint.
package datatypes

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxQueryBytes is the maximum size of a single query. Byte length is
	// checked (not rune count) to bound memory for multi-byte input.
	MaxQueryBytes = 8 * 1024 // 8KB
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// queryValidate is the validator instance for query datatypes.
// Initialized in init() with custom validators.
var queryValidate *validator.Validate

func init() {
	queryValidate = validator.New()
	_ = queryValidate.RegisterValidation("maxquerybytes", validateMaxQueryBytes)
}

// validateMaxQueryBytes enforces the MaxQueryBytes limit on string fields.
func validateMaxQueryBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxQueryBytes
}

// =============================================================================
// Query Request / Response
// =============================================================================

// QueryRequest represents an incoming health question.
//
// # Description
//
// QueryRequest is the body of POST /v1/query. The query may be written in
// any language; the service detects it and translates internally. The
// request is immutable once bound; the pipeline never writes back into it.
//
// # Fields
//
//   - Query: Required. The health question or symptom description, at most
//     8KB. Any language is accepted.
//   - ConversationId: Optional. Opaque identifier returned by a previous
//     response. Omit to start a new conversation.
//
// # Validation
//
// Uses go-playground/validator:
//   - Query: required, max 8192 bytes
//   - ConversationId: max 128 characters
type QueryRequest struct {
	Query          string `json:"query" validate:"required,maxquerybytes"`
	ConversationId string `json:"conversation_id,omitempty" validate:"omitempty,max=128"`
}

// Validate checks the request against its validation rules.
func (r *QueryRequest) Validate() error {
	if err := queryValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid query request: %w", err)
	}
	return nil
}

// QueryResponse is the structured answer returned to the caller.
//
// # Fields
//
//   - Answer: The grounded answer text, in the user's detected language
//     (or in Swedish with a note when back-translation failed).
//   - ConversationId: Identifier to pass back for follow-up questions.
//   - SourcesUsed: URLs actually cited by the answer. Always a subset of
//     the evidence retrieved from the approved domains; may be empty when
//     no approved source covered the question.
//   - DetectedLanguage: ISO 639-1 code of the language the question was
//     asked in.
type QueryResponse struct {
	Answer           string   `json:"answer"`
	ConversationId   string   `json:"conversation_id"`
	SourcesUsed      []string `json:"sources_used"`
	DetectedLanguage string   `json:"detected_language"`
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import "fmt"

// SynthesisError reports a failed answer generation. Synthesis is not
// retried; a failing LLM backend fails the request.
type SynthesisError struct {
	Err error
}

// Error implements the error interface for SynthesisError.
func (e *SynthesisError) Error() string {
	return fmt.Sprintf("answer synthesis failed: %v", e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// IsSynthesisError checks if an error is a *SynthesisError.
func IsSynthesisError(err error) bool {
	_, ok := err.(*SynthesisError)
	return ok
}

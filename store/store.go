// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store manages per-conversation turn history.
//
// Conversations are identified by opaque ids. Operations on different
// conversations run concurrently; operations on the same conversation are
// serialized, so two appends to one conversation always land in arrival
// order with no interleaving.
package store

import (
	"context"
	"fmt"

	"github.com/AleutianAI/AleutianCare/datatypes"
)

// NotFoundError is returned when a conversation id has no history.
type NotFoundError struct {
	ConversationId string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("conversation not found: %s", e.ConversationId)
}

// IsNotFound checks if an error is a *NotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// ConversationStore holds turn history keyed by conversation id.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use and must serialize
// operations on the same conversation id.
type ConversationStore interface {
	// GetOrCreate resolves an id to an existing conversation, or creates a
	// fresh one when id is empty or unknown. Returns the effective id.
	GetOrCreate(ctx context.Context, id string) (string, error)

	// History returns the conversation's turns in append order. Returns a
	// *NotFoundError for unknown ids.
	History(ctx context.Context, id string) ([]datatypes.Turn, error)

	// Append adds turns to the conversation in the given order. Returns a
	// *NotFoundError for unknown ids.
	Append(ctx context.Context, id string, turns ...datatypes.Turn) error

	// Delete removes a conversation and its history. Deleting an unknown
	// id is a no-op, so deletes are idempotent.
	Delete(ctx context.Context, id string) error

	// Close releases the store's resources.
	Close() error
}

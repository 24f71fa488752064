// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianCare/datatypes"
	"github.com/AleutianAI/AleutianCare/observability"
	"github.com/google/uuid"
)

// conversation holds one conversation's state. The mutex serializes all
// operations on this conversation; the store-level mutex only guards the
// map itself.
type conversation struct {
	mu         sync.Mutex
	turns      []datatypes.Turn
	lastActive time.Time
}

// MemoryStore is the in-memory ConversationStore. It optionally
// write-through persists to a Persister so history survives a restart.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	persister     *Persister
	maxTurns      int
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithPersister enables write-through persistence. Existing persisted
// conversations are loaded lazily on first access.
func WithPersister(p *Persister) MemoryStoreOption {
	return func(s *MemoryStore) { s.persister = p }
}

// WithMaxTurns caps history length per conversation; the oldest turns are
// dropped first. Zero means unbounded.
func WithMaxTurns(n int) MemoryStoreOption {
	return func(s *MemoryStore) { s.maxTurns = n }
}

// NewMemoryStore builds an empty store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		conversations: make(map[string]*conversation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate implements the ConversationStore interface.
func (s *MemoryStore) GetOrCreate(ctx context.Context, id string) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; ok {
		return id, nil
	}

	conv := &conversation{lastActive: time.Now()}
	if s.persister != nil {
		turns, err := s.persister.Load(id)
		if err == nil {
			conv.turns = turns
		} else if !IsNotFound(err) {
			return "", err
		}
	}
	s.conversations[id] = conv
	observability.ConversationsActive.Set(float64(len(s.conversations)))
	return id, nil
}

// History implements the ConversationStore interface.
func (s *MemoryStore) History(ctx context.Context, id string) ([]datatypes.Turn, error) {
	conv, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()
	out := make([]datatypes.Turn, len(conv.turns))
	copy(out, conv.turns)
	return out, nil
}

// Append implements the ConversationStore interface.
func (s *MemoryStore) Append(ctx context.Context, id string, turns ...datatypes.Turn) error {
	conv, err := s.lookup(id)
	if err != nil {
		return err
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.turns = append(conv.turns, turns...)
	conv.lastActive = time.Now()
	if s.maxTurns > 0 && len(conv.turns) > s.maxTurns {
		conv.turns = conv.turns[len(conv.turns)-s.maxTurns:]
	}
	if s.persister != nil {
		if err := s.persister.Save(id, conv.turns); err != nil {
			slog.Error("Failed to persist conversation", "conversation_id", id, "error", err)
		}
	}
	return nil
}

// Delete implements the ConversationStore interface.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.conversations, id)
	observability.ConversationsActive.Set(float64(len(s.conversations)))
	s.mu.Unlock()

	if s.persister != nil {
		return s.persister.Delete(id)
	}
	return nil
}

// Close implements the ConversationStore interface.
func (s *MemoryStore) Close() error {
	if s.persister != nil {
		return s.persister.Close()
	}
	return nil
}

// Len returns the number of live conversations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

// ExpireIdle drops conversations idle for longer than ttl and returns how
// many were removed. Persisted copies are removed too, so an expired
// conversation does not resurrect on next access.
func (s *MemoryStore) ExpireIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	var expired []string
	for id, conv := range s.conversations {
		conv.mu.Lock()
		idle := conv.lastActive.Before(cutoff)
		conv.mu.Unlock()
		if idle {
			expired = append(expired, id)
			delete(s.conversations, id)
		}
	}
	observability.ConversationsActive.Set(float64(len(s.conversations)))
	s.mu.Unlock()

	if s.persister != nil {
		for _, id := range expired {
			if err := s.persister.Delete(id); err != nil {
				slog.Error("Failed to delete expired conversation", "conversation_id", id, "error", err)
			}
		}
	}
	return len(expired)
}

// lookup resolves an id under the store lock.
func (s *MemoryStore) lookup(id string) (*conversation, error) {
	s.mu.RLock()
	conv, ok := s.conversations[id]
	s.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{ConversationId: id}
	}
	return conv, nil
}

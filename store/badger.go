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
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianCare/datatypes"
	badger "github.com/dgraph-io/badger/v4"
)

// conversationKeyPrefix namespaces conversation records in Badger.
const conversationKeyPrefix = "conversation/"

// Persister stores conversation history in Badger so it survives process
// restarts. Values are JSON-encoded turn slices; human-readable values
// make the store inspectable with badger's CLI when debugging.
type Persister struct {
	db *badger.DB
}

// NewPersister opens (or creates) a Badger store at path.
func NewPersister(path string) (*Persister, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store at %s: %w", path, err)
	}
	slog.Info("Opened conversation store", "path", path)
	return &Persister{db: db}, nil
}

// NewInMemoryPersister opens a Badger store backed by memory only.
// Intended for tests.
func NewInMemoryPersister() (*Persister, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger store: %w", err)
	}
	return &Persister{db: db}, nil
}

// Save writes a conversation's full history.
func (p *Persister) Save(id string, turns []datatypes.Turn) error {
	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("failed to encode conversation %s: %w", id, err)
	}
	err = p.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(conversationKeyPrefix+id), data)
	})
	if err != nil {
		return fmt.Errorf("failed to persist conversation %s: %w", id, err)
	}
	return nil
}

// Load reads a conversation's history. Returns a *NotFoundError when the
// id has never been saved.
func (p *Persister) Load(id string) ([]datatypes.Turn, error) {
	var data []byte
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(conversationKeyPrefix + id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, &NotFoundError{ConversationId: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", id, err)
	}

	var turns []datatypes.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("failed to decode conversation %s: %w", id, err)
	}
	return turns, nil
}

// Delete removes a conversation. Unknown ids are a no-op.
func (p *Persister) Delete(id string) error {
	err := p.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(conversationKeyPrefix + id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	return nil
}

// Close closes the underlying database.
func (p *Persister) Close() error {
	return p.db.Close()
}

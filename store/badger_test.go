// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"testing"

	"github.com/AleutianAI/AleutianCare/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPersister_RoundTrip verifies save/load/delete against Badger.
func TestPersister_RoundTrip(t *testing.T) {
	p, err := NewInMemoryPersister()
	require.NoError(t, err)
	defer p.Close()

	turns := []datatypes.Turn{
		datatypes.NewTurn(datatypes.RoleUser, "vad är feber?"),
		datatypes.NewTurn(datatypes.RoleAssistant, "en kroppstemperatur över 38 grader"),
	}
	require.NoError(t, p.Save("conv-1", turns))

	loaded, err := p.Load("conv-1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, turns[0].Content, loaded[0].Content)
	assert.Equal(t, turns[1].Role, loaded[1].Role)

	require.NoError(t, p.Delete("conv-1"))
	_, err = p.Load("conv-1")
	assert.True(t, IsNotFound(err))
}

// TestPersister_LoadUnknown verifies the not-found taxonomy.
func TestPersister_LoadUnknown(t *testing.T) {
	p, err := NewInMemoryPersister()
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Load("nope")
	assert.True(t, IsNotFound(err))
}

// TestPersister_DeleteUnknown verifies deleting a missing key is a no-op.
func TestPersister_DeleteUnknown(t *testing.T) {
	p, err := NewInMemoryPersister()
	require.NoError(t, err)
	defer p.Close()

	assert.NoError(t, p.Delete("nope"))
}

/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loqalabs/loqa-voice-api/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SynthesisEventsStore {
	t.Helper()

	db, err := NewDatabase(DatabaseConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewSynthesisEventsStore(db)
}

func newEvent(endpoint string, success bool, at time.Time) *events.SynthesisEvent {
	event := events.NewSynthesisEvent(endpoint, "req-"+endpoint)
	event.Timestamp = at
	event.Engine = "gtranslate"
	event.Language = "en"
	event.TextLength = 11
	event.Success = success
	if !success {
		event.ErrorMessage = "engine down"
	}
	return event
}

func TestNewDatabase_InMemoryByDefault(t *testing.T) {
	db, err := NewDatabase(DatabaseConfig{})
	require.NoError(t, err)
	defer db.Close()

	assert.True(t, db.InMemory())
	assert.NoError(t, db.Ping())
}

func TestNewDatabase_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	db, err := NewDatabase(DatabaseConfig{Path: path})
	require.NoError(t, err)

	store := NewSynthesisEventsStore(db)
	event := newEvent(events.EndpointTTS, true, time.Now().UTC())
	require.NoError(t, store.Insert(context.Background(), event))
	require.NoError(t, db.Close())

	reopened, err := NewDatabase(DatabaseConfig{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	assert.False(t, reopened.InMemory())
	got, err := NewSynthesisEventsStore(reopened).GetByUUID(context.Background(), event.UUID)
	require.NoError(t, err)
	assert.Equal(t, event.Endpoint, got.Endpoint)
}

func TestSynthesisEventsStore_InsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	event := newEvent(events.EndpointPDFCloneVoice, true, time.Now().UTC().Truncate(time.Millisecond))
	event.VoiceName = "sample.wav"
	event.DocumentName = "book.pdf"
	event.Slow = true
	event.SetPages(2, 4, 9)
	event.Format = "wav"
	event.AudioBytes = 4096

	require.NoError(t, store.Insert(ctx, event))

	got, err := store.GetByUUID(ctx, event.UUID)
	require.NoError(t, err)

	assert.Equal(t, event.UUID, got.UUID)
	assert.Equal(t, event.Endpoint, got.Endpoint)
	assert.Equal(t, "sample.wav", got.VoiceName)
	assert.Equal(t, "book.pdf", got.DocumentName)
	assert.True(t, got.Slow)
	assert.Equal(t, 2, got.StartPage)
	assert.Equal(t, 4, got.EndPage)
	assert.Equal(t, 9, got.TotalPages)
	assert.Equal(t, 4096, got.AudioBytes)
	assert.True(t, got.Success)
	assert.True(t, event.Timestamp.Equal(got.Timestamp), "timestamp %v != %v", event.Timestamp, got.Timestamp)
}

func TestSynthesisEventsStore_InsertInvalid(t *testing.T) {
	store := newTestStore(t)

	event := newEvent("speak", true, time.Now())
	assert.Error(t, store.Insert(context.Background(), event))
}

func TestSynthesisEventsStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetByUUID(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestSynthesisEventsStore_ListAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	inserted := []*events.SynthesisEvent{
		newEvent(events.EndpointTTS, true, base),
		newEvent(events.EndpointTTS, false, base.Add(time.Minute)),
		newEvent(events.EndpointPDFTTS, true, base.Add(2*time.Minute)),
		newEvent(events.EndpointCloneVoice, true, base.Add(3*time.Minute)),
	}
	for _, event := range inserted {
		require.NoError(t, store.Insert(ctx, event))
	}

	all, err := store.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, inserted[3].UUID, all[0].UUID, "newest first")
	assert.Equal(t, inserted[0].UUID, all[3].UUID)

	page, err := store.List(ctx, ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, inserted[2].UUID, page[0].UUID)

	ttsOnly, err := store.List(ctx, ListOptions{Endpoint: events.EndpointTTS})
	require.NoError(t, err)
	assert.Len(t, ttsOnly, 2)

	failed := false
	count, err := store.Count(ctx, ListOptions{Success: &failed})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	total, err := store.Count(ctx, ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
}

func TestSynthesisEventsStore_ListEmpty(t *testing.T) {
	store := newTestStore(t)

	list, err := store.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

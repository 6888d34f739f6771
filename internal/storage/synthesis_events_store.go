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
	"database/sql"
	"errors"
	"fmt"

	"github.com/loqalabs/loqa-voice-api/internal/events"
	"github.com/loqalabs/loqa-voice-api/internal/logging"
	"go.uber.org/zap"
)

// ErrEventNotFound is returned when no event has the requested UUID
var ErrEventNotFound = errors.New("synthesis event not found")

const synthesisEventColumns = `uuid, request_id, timestamp, endpoint, engine,
	language, slow, text_length, voice_name, document_name,
	start_page, end_page, total_pages,
	format, audio_bytes, processing_time_ms, success, error_message`

// SynthesisEventsStore handles database operations for synthesis events
type SynthesisEventsStore struct {
	db *Database
}

// NewSynthesisEventsStore creates a new synthesis events store
func NewSynthesisEventsStore(db *Database) *SynthesisEventsStore {
	return &SynthesisEventsStore{db: db}
}

// Insert stores a new synthesis event in the database
func (s *SynthesisEventsStore) Insert(ctx context.Context, event *events.SynthesisEvent) error {
	if err := event.IsValid(); err != nil {
		return fmt.Errorf("invalid synthesis event: %w", err)
	}

	query := `
		INSERT INTO synthesis_events (` + synthesisEventColumns + `) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?, ?, ?
		)`

	_, err := s.db.DB().ExecContext(ctx, query,
		event.UUID, event.RequestID, event.Timestamp, event.Endpoint, event.Engine,
		event.Language, event.Slow, event.TextLength, event.VoiceName, event.DocumentName,
		event.StartPage, event.EndPage, event.TotalPages,
		event.Format, event.AudioBytes, event.ProcessingTime, event.Success, event.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert synthesis event: %w", err)
	}

	logging.LogDatabaseOperation("insert", "synthesis_events",
		zap.String("uuid", event.UUID),
		zap.String("endpoint", event.Endpoint),
		zap.Bool("success", event.Success),
	)
	return nil
}

// GetByUUID retrieves a synthesis event by its UUID
func (s *SynthesisEventsStore) GetByUUID(ctx context.Context, uuid string) (*events.SynthesisEvent, error) {
	query := `SELECT ` + synthesisEventColumns + ` FROM synthesis_events WHERE uuid = ?`

	event, err := scanSynthesisEvent(s.db.DB().QueryRowContext(ctx, query, uuid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get synthesis event: %w", err)
	}
	return event, nil
}

// ListOptions defines filtering and pagination options
type ListOptions struct {
	// Filtering
	Endpoint string
	Success  *bool // nil = all, true = success only, false = errors only

	// Pagination
	Limit  int
	Offset int
}

// List retrieves synthesis events, newest first
func (s *SynthesisEventsStore) List(ctx context.Context, options ListOptions) ([]*events.SynthesisEvent, error) {
	where, args := buildFilter(options)
	query := `SELECT ` + synthesisEventColumns + ` FROM synthesis_events` + where +
		` ORDER BY timestamp DESC, id DESC`

	if options.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, options.Limit)

		if options.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, options.Offset)
		}
	}

	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query synthesis events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	eventsList := make([]*events.SynthesisEvent, 0)
	for rows.Next() {
		event, err := scanSynthesisEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan synthesis event: %w", err)
		}
		eventsList = append(eventsList, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating synthesis events: %w", err)
	}

	return eventsList, nil
}

// Count returns the number of synthesis events matching the filter
func (s *SynthesisEventsStore) Count(ctx context.Context, options ListOptions) (int64, error) {
	where, args := buildFilter(options)

	var count int64
	err := s.db.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM synthesis_events`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count synthesis events: %w", err)
	}

	return count, nil
}

func buildFilter(options ListOptions) (string, []interface{}) {
	where := " WHERE 1=1"
	var args []interface{}

	if options.Endpoint != "" {
		where += " AND endpoint = ?"
		args = append(args, options.Endpoint)
	}

	if options.Success != nil {
		where += " AND success = ?"
		args = append(args, *options.Success)
	}

	return where, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSynthesisEvent(row rowScanner) (*events.SynthesisEvent, error) {
	var event events.SynthesisEvent

	err := row.Scan(
		&event.UUID, &event.RequestID, &event.Timestamp, &event.Endpoint, &event.Engine,
		&event.Language, &event.Slow, &event.TextLength, &event.VoiceName, &event.DocumentName,
		&event.StartPage, &event.EndPage, &event.TotalPages,
		&event.Format, &event.AudioBytes, &event.ProcessingTime, &event.Success, &event.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	return &event, nil
}

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

package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Endpoints that produce synthesis events
const (
	EndpointTTS           = "tts"
	EndpointCloneVoice    = "clone-voice"
	EndpointPDFTTS        = "pdf-tts"
	EndpointPDFCloneVoice = "pdf-clone-voice"
)

// SynthesisEvent records one synthesis request, successful or not
type SynthesisEvent struct {
	// Core identification
	UUID      string    `json:"uuid" db:"uuid"`
	RequestID string    `json:"request_id" db:"request_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Endpoint  string    `json:"endpoint" db:"endpoint"`
	Engine    string    `json:"engine" db:"engine"`

	// Request parameters
	Language     string `json:"language" db:"language"`
	Slow         bool   `json:"slow" db:"slow"`
	TextLength   int    `json:"text_length" db:"text_length"`
	VoiceName    string `json:"voice_name,omitempty" db:"voice_name"`
	DocumentName string `json:"document_name,omitempty" db:"document_name"`

	// Page selection actually used for document endpoints
	StartPage  int `json:"start_page,omitempty" db:"start_page"`
	EndPage    int `json:"end_page,omitempty" db:"end_page"`
	TotalPages int `json:"total_pages,omitempty" db:"total_pages"`

	// Outcome
	Format         string `json:"format,omitempty" db:"format"`
	AudioBytes     int    `json:"audio_bytes" db:"audio_bytes"`
	ProcessingTime int64  `json:"processing_time_ms" db:"processing_time_ms"`
	Success        bool   `json:"success" db:"success"`
	ErrorMessage   string `json:"error_message,omitempty" db:"error_message"`
}

// NewSynthesisEvent creates an event with a fresh UUID and the current time
func NewSynthesisEvent(endpoint, requestID string) *SynthesisEvent {
	return &SynthesisEvent{
		UUID:      uuid.NewString(),
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Endpoint:  endpoint,
		Success:   true,
	}
}

// SetPages records the page selection used for a document
func (se *SynthesisEvent) SetPages(first, last, total int) {
	se.StartPage = first
	se.EndPage = last
	se.TotalPages = total
}

// SetAudio records the produced audio and marks processing as complete
func (se *SynthesisEvent) SetAudio(format string, size int) {
	se.Format = format
	se.AudioBytes = size
	se.ProcessingTime = time.Since(se.Timestamp).Milliseconds()
}

// SetError marks the event as failed with an error message
func (se *SynthesisEvent) SetError(err error) {
	se.Success = false
	se.ErrorMessage = err.Error()
	se.ProcessingTime = time.Since(se.Timestamp).Milliseconds()
}

// IsValid performs basic validation on the event
func (se *SynthesisEvent) IsValid() error {
	if se.UUID == "" {
		return fmt.Errorf("UUID is required")
	}

	switch se.Endpoint {
	case EndpointTTS, EndpointCloneVoice, EndpointPDFTTS, EndpointPDFCloneVoice:
	default:
		return fmt.Errorf("unknown endpoint %q", se.Endpoint)
	}

	if se.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}

	if se.TextLength < 0 || se.AudioBytes < 0 {
		return fmt.Errorf("sizes must not be negative")
	}

	return nil
}

// String returns a human-readable representation of the event
func (se *SynthesisEvent) String() string {
	return fmt.Sprintf("SynthesisEvent{UUID: %s, Endpoint: %s, Engine: %s, Language: %s, AudioBytes: %d, Success: %t}",
		se.UUID, se.Endpoint, se.Engine, se.Language, se.AudioBytes, se.Success)
}

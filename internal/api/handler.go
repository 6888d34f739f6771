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

// Package api implements the HTTP surface: uploads, listings and the four
// synthesis endpoints.
package api

import (
	"context"
	"net/http"

	"github.com/loqalabs/loqa-voice-api/internal/events"
	"github.com/loqalabs/loqa-voice-api/internal/speech"
	"github.com/loqalabs/loqa-voice-api/internal/uploads"
)

// EventRecorder receives one event per synthesis request once it finished
type EventRecorder interface {
	Record(ctx context.Context, event *events.SynthesisEvent)
}

// Options configures a Handler
type Options struct {
	Store       *uploads.Store
	Synthesizer speech.Synthesizer
	Cloner      speech.Cloner

	// Recorder is optional
	Recorder EventRecorder

	// MaxUploadBytes bounds request bodies; 0 disables the limit
	MaxUploadBytes int64
}

// Handler serves the voice API endpoints
type Handler struct {
	store          *uploads.Store
	synthesizer    speech.Synthesizer
	cloner         speech.Cloner
	recorder       EventRecorder
	maxUploadBytes int64
}

// NewHandler creates a handler over the given store and synthesizers
func NewHandler(opts Options) *Handler {
	return &Handler{
		store:          opts.Store,
		synthesizer:    opts.Synthesizer,
		cloner:         opts.Cloner,
		recorder:       opts.Recorder,
		maxUploadBytes: opts.MaxUploadBytes,
	}
}

// Register adds the endpoints to mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/upload-voice", h.handleUpload(h.store.Voices, "Voice uploaded successfully"))
	mux.HandleFunc("/upload-pdf", h.handleUpload(h.store.Documents, "PDF uploaded successfully"))
	mux.HandleFunc("/voices", h.handleList(h.store.Voices, "voices"))
	mux.HandleFunc("/pdfs", h.handleList(h.store.Documents, "pdfs"))

	mux.HandleFunc("/tts", h.handleSynthesis(events.EndpointTTS, h.tts))
	mux.HandleFunc("/clone-voice", h.handleSynthesis(events.EndpointCloneVoice, h.cloneVoice))
	mux.HandleFunc("/pdf-tts", h.handleSynthesis(events.EndpointPDFTTS, h.pdfTTS))
	mux.HandleFunc("/pdf-clone-voice", h.handleSynthesis(events.EndpointPDFCloneVoice, h.pdfCloneVoice))
}

func (h *Handler) limitBody(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
}

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

package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/loqalabs/loqa-voice-api/internal/events"
	"github.com/loqalabs/loqa-voice-api/internal/logging"
	"github.com/loqalabs/loqa-voice-api/internal/storage"
	"go.uber.org/zap"
)

const synthesisEventsPath = "/api/synthesis-events"

// HistoryStore is the read side of the synthesis history
type HistoryStore interface {
	List(ctx context.Context, options storage.ListOptions) ([]*events.SynthesisEvent, error)
	Count(ctx context.Context, options storage.ListOptions) (int64, error)
	GetByUUID(ctx context.Context, uuid string) (*events.SynthesisEvent, error)
}

// SynthesisEventsHandler handles HTTP requests for synthesis history
type SynthesisEventsHandler struct {
	store HistoryStore
}

// NewSynthesisEventsHandler creates a new synthesis events handler
func NewSynthesisEventsHandler(store HistoryStore) *SynthesisEventsHandler {
	return &SynthesisEventsHandler{store: store}
}

// ListSynthesisEventsResponse represents the response for listing events
type ListSynthesisEventsResponse struct {
	Events     []*events.SynthesisEvent `json:"events"`
	Total      int64                    `json:"total"`
	Page       int                      `json:"page"`
	PageSize   int                      `json:"page_size"`
	TotalPages int                      `json:"total_pages"`
}

// Register adds the history endpoints to mux
func (h *SynthesisEventsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc(synthesisEventsPath, h.HandleSynthesisEvents)
	mux.HandleFunc(synthesisEventsPath+"/", h.HandleSynthesisEventByID)
}

// HandleSynthesisEvents handles GET /api/synthesis-events
func (h *SynthesisEventsHandler) HandleSynthesisEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	query := r.URL.Query()

	// Pagination
	page := parseIntParam(query.Get("page"), 1)
	pageSize := parseIntParam(query.Get("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if page < 1 {
		page = 1
	}
	// Keep (page-1)*pageSize within int
	if maxPage := math.MaxInt / pageSize; page > maxPage {
		page = maxPage
	}

	options := storage.ListOptions{
		Endpoint: query.Get("endpoint"),
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	}

	if successStr := query.Get("success"); successStr != "" {
		if success, err := strconv.ParseBool(successStr); err == nil {
			options.Success = &success
		}
	}

	total, err := h.store.Count(r.Context(), options)
	if err != nil {
		logging.LogError(err, "Failed to count synthesis events")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	list, err := h.store.List(r.Context(), options)
	if err != nil {
		logging.LogError(err, "Failed to list synthesis events")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	writeJSON(w, http.StatusOK, ListSynthesisEventsResponse{
		Events:     list,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// HandleSynthesisEventByID handles GET /api/synthesis-events/{id}
func (h *SynthesisEventsHandler) HandleSynthesisEventByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, synthesisEventsPath+"/"), "/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "Event ID is required", http.StatusBadRequest)
		return
	}

	event, err := h.store.GetByUUID(r.Context(), id)
	if errors.Is(err, storage.ErrEventNotFound) {
		http.Error(w, "Synthesis event not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.LogError(err, "Failed to get synthesis event", zap.String("uuid", id))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// parseIntParam parses a query parameter, falling back to def
func parseIntParam(value string, def int) int {
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return n
}

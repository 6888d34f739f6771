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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/loqalabs/loqa-voice-api/internal/logging"
	"github.com/loqalabs/loqa-voice-api/internal/speech"
	"github.com/loqalabs/loqa-voice-api/internal/uploads"
	"go.uber.org/zap"
)

// apiError is a failure with the HTTP status it is reported with
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	return e.message
}

// errNoText is reported when the selected pages of a document hold no text
var errNoText = &apiError{
	status:  http.StatusInternalServerError,
	message: "No text could be extracted from the PDF",
}

func badRequest(format string, args ...interface{}) *apiError {
	return &apiError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

// classify maps an error to the status the caller sees. Unknown or invalid
// uploads and bad input are caller errors; everything else is a server error.
func classify(err error) *apiError {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return &apiError{
			status:  http.StatusRequestEntityTooLarge,
			message: fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit),
		}
	case errors.Is(err, uploads.ErrInvalidName), errors.Is(err, speech.ErrEmptyText):
		return &apiError{status: http.StatusBadRequest, message: err.Error()}
	case errors.Is(err, speech.ErrQueueFull):
		return &apiError{status: http.StatusServiceUnavailable, message: err.Error()}
	default:
		return &apiError{status: http.StatusInternalServerError, message: err.Error()}
	}
}

// writeError reports err as {"error": message}
func writeError(w http.ResponseWriter, err error) {
	apiErr := classify(err)
	if apiErr.status >= http.StatusInternalServerError {
		logging.LogError(err, "Request failed", zap.Int("status", apiErr.status))
	}
	writeJSON(w, apiErr.status, map[string]string{"error": apiErr.message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.LogWarn("Failed to write JSON response", zap.Error(err))
	}
}

// writeAudio sends fully synthesized audio
func writeAudio(w http.ResponseWriter, result *speech.Result) {
	w.Header().Set("Content-Type", result.ContentType())
	w.Header().Set("Content-Length", fmt.Sprint(len(result.Audio)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Audio); err != nil {
		logging.LogWarn("Failed to write audio response", zap.Error(err))
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

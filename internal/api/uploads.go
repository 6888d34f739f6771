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
	"errors"
	"io"
	"net/http"

	"github.com/loqalabs/loqa-voice-api/internal/logging"
	"github.com/loqalabs/loqa-voice-api/internal/security"
	"github.com/loqalabs/loqa-voice-api/internal/uploads"
	"go.uber.org/zap"
)

// uploadField is the multipart field carrying the uploaded file
const uploadField = "file"

// UploadResponse is returned after a successful upload
type UploadResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

// handleUpload streams the "file" part of a multipart request into area. The
// stored name is the base name of the client supplied file name.
func (h *Handler) handleUpload(area uploads.Area, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}

		h.limitBody(w, r)

		name, err := receiveUpload(r, area)
		if err != nil {
			logging.LogUploadOperation(area.Name(), "rejected",
				zap.String("name", security.SanitizeLogInput(name)),
				zap.Error(err),
			)
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, UploadResponse{Message: message, Name: name})
	}
}

func receiveUpload(r *http.Request, area uploads.Area) (string, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return "", badRequest("expected a multipart form with a %q file: %v", uploadField, err)
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return "", badRequest("%s is required", uploadField)
		}
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				return "", err
			}
			return "", badRequest("malformed multipart form: %v", err)
		}

		// FileName is already reduced to its base name
		name := part.FileName()
		if part.FormName() != uploadField || name == "" {
			_ = part.Close()
			continue
		}

		err = area.Put(r.Context(), name, part)
		_ = part.Close()
		return name, err
	}
}

// handleList returns the names stored in area under key
func (h *Handler) handleList(area uploads.Area, key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}

		names, err := area.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if names == nil {
			names = []string{}
		}

		writeJSON(w, http.StatusOK, map[string][]string{key: names})
	}
}

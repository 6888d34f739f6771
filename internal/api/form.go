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
	"net/http"
	"strconv"
	"strings"
)

// formMemory is the part of a multipart form kept in memory; the rest
// spills to temporary files
const formMemory = 32 << 20

// Form defaults
const (
	defaultLang      = "en"
	defaultStartPage = 1
	lastPageSentinel = -1
)

// parseForm accepts both multipart and urlencoded forms
func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) error {
	h.limitBody(w, r)

	err := r.ParseMultipartForm(formMemory)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return nil
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return err
	}
	return badRequest("malformed form: %v", err)
}

// formValue returns the field value or def when the field is absent or empty
func formValue(r *http.Request, key, def string) string {
	if value := r.FormValue(key); value != "" {
		return value
	}
	return def
}

func requiredValue(r *http.Request, key string) (string, error) {
	value := r.FormValue(key)
	if value == "" {
		return "", badRequest("%s is required", key)
	}
	return value, nil
}

func formInt(r *http.Request, key string, def int) (int, error) {
	value := r.FormValue(key)
	if value == "" {
		return def, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, badRequest("%s must be an integer, got %q", key, value)
	}
	return n, nil
}

// formBool accepts the spellings HTML forms and API clients commonly send
func formBool(r *http.Request, key string, def bool) (bool, error) {
	value := strings.ToLower(strings.TrimSpace(r.FormValue(key)))
	switch value {
	case "":
		return def, nil
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, badRequest("%s must be a boolean, got %q", key, value)
	}
}

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

package security

import (
	"errors"
	"strings"
)

// maxUploadNameLength matches the common filesystem limit for a single path element
const maxUploadNameLength = 255

var (
	// ErrInvalidUploadName is returned when a client supplied file name cannot
	// be used as a storage key
	ErrInvalidUploadName = errors.New("invalid upload name")
)

// SanitizeLogInput removes newline characters to prevent log injection attacks
// This function should be used for all user-controlled data before logging
func SanitizeLogInput(input string) string {
	sanitized := strings.ReplaceAll(input, "\n", "")
	sanitized = strings.ReplaceAll(sanitized, "\r", "")
	return sanitized
}

// ValidateUploadName ensures a client supplied file name addresses exactly one
// entry inside an upload area. Path separators, the parent directory entry
// and control characters are rejected rather than normalized, so a name never
// silently maps onto a different key. Dots inside a single element are fine.
func ValidateUploadName(name string) error {
	if name == "" || name == "." || name == ".." || len(name) > maxUploadNameLength {
		return ErrInvalidUploadName
	}

	if strings.ContainsAny(name, "/\\") {
		return ErrInvalidUploadName
	}

	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return ErrInvalidUploadName
		}
	}

	return nil
}

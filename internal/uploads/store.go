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

// Package uploads holds client uploaded voice recordings and documents for the
// lifetime of the process. Blobs are keyed by their original file name inside
// one of two independent areas.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/loqalabs/loqa-voice-api/internal/security"
)

// Area names
const (
	AreaVoices    = "voices"
	AreaDocuments = "documents"
)

var (
	// ErrNotFound is returned when a name does not resolve to a stored blob
	ErrNotFound = errors.New("upload not found")

	// ErrInvalidName is returned for names that cannot be used as storage keys
	ErrInvalidName = security.ErrInvalidUploadName
)

// Area is one independently keyed holding area. Writes are atomic with
// respect to concurrent readers and a second Put under the same name replaces
// the first.
type Area interface {
	// Name returns the area name, e.g. "voices"
	Name() string

	// Put stores the contents of r under name
	Put(ctx context.Context, name string, r io.Reader) error

	// Get returns the stored bytes for name or ErrNotFound
	Get(ctx context.Context, name string) ([]byte, error)

	// Localize returns a filesystem path holding the blob for consumers that
	// need a path. release must be called once the path is no longer needed.
	Localize(ctx context.Context, name string) (path string, release func(), err error)

	// List returns the names of all stored blobs
	List(ctx context.Context) ([]string, error)

	// Destroy drops every blob in the area; the area is unusable afterwards
	Destroy(ctx context.Context) error
}

// Store groups the voice and document areas
type Store struct {
	Voices    Area
	Documents Area
}

// Close destroys both areas
func (s *Store) Close(ctx context.Context) error {
	var errs []error
	for _, area := range []Area{s.Voices, s.Documents} {
		if area == nil {
			continue
		}
		if err := area.Destroy(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy %s area: %w", area.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func noRelease() {}

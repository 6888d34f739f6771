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

// Package speech turns text into audio, either in a generic engine voice or in
// a voice cloned from a reference recording.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Audio formats produced by the synthesizers
const (
	FormatMP3 = "mp3"
	FormatWAV = "wav"
)

var (
	// ErrEmptyText is returned for empty or whitespace-only input text
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrQueueFull is returned when no synthesis slot frees up in time
	ErrQueueFull = errors.New("synthesis queue full")
)

// Result holds fully synthesized audio
type Result struct {
	Audio  []byte
	Format string
}

// ContentType returns the MIME type announced for the audio
func (r *Result) ContentType() string {
	return "audio/" + r.Format
}

// Synthesizer speaks text in the engine's generic voice. Output is always MP3.
type Synthesizer interface {
	// Synthesize converts text in language lang; slow selects a reduced
	// speaking rate. lang is passed to the engine as is.
	Synthesize(ctx context.Context, text, lang string, slow bool) (*Result, error)

	// Engine names the backend, e.g. "gtranslate"
	Engine() string

	// Close releases resources
	Close() error
}

// Cloner speaks text in a voice derived from a reference recording. Output is
// always WAV.
type Cloner interface {
	// Clone converts text using the recording at referencePath
	Clone(ctx context.Context, text, referencePath, lang string) (*Result, error)

	// Engine names the backend, e.g. "coqui"
	Engine() string

	// Close releases resources
	Close() error
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return nil
}

// slots bounds concurrent calls into a backend
type slots chan struct{}

func newSlots(n int) slots {
	if n <= 0 {
		n = 1
	}
	return make(slots, n)
}

// acquire waits for a free slot. A zero wait blocks until ctx is done.
func (s slots) acquire(ctx context.Context, wait time.Duration) (func(), error) {
	var timeout <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-timeout:
		return nil, fmt.Errorf("%w: no slot free after %s", ErrQueueFull, wait)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// withTimeout derives a context bounded by timeout; zero means unbounded
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

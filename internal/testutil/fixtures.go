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

// Package testutil builds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"testing"

	"github.com/go-pdf/fpdf"
)

// BuildPDF renders one page per entry. A non-empty entry becomes a line of
// text on its page; an empty entry becomes a page holding only a filled
// rectangle, i.e. a page without extractable text.
func BuildPDF(t testing.TB, pages ...string) []byte {
	t.Helper()

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.SetFont("Helvetica", "", 14)

	for _, text := range pages {
		doc.AddPage()
		if text == "" {
			doc.SetFillColor(120, 120, 120)
			doc.Rect(20, 20, 120, 80, "F")
			continue
		}
		doc.Cell(0, 10, text)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("failed to render test PDF: %v", err)
	}
	return buf.Bytes()
}

// WAVHeader returns a minimal 44 byte PCM WAV header followed by n zero
// samples, enough for code that only checks the container signature
func WAVHeader(n int) []byte {
	data := make([]byte, 44+2*n)
	copy(data[0:], "RIFF")
	copy(data[8:], "WAVEfmt ")
	copy(data[36:], "data")
	return data
}

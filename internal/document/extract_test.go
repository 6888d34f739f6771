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

package document

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/loqalabs/loqa-voice-api/internal/testutil"
)

func TestPageRange_Clamp(t *testing.T) {
	tests := []struct {
		name  string
		input PageRange
		total int
		want  PageRange
	}{
		{name: "Within bounds", input: PageRange{2, 3}, total: 5, want: PageRange{2, 3}},
		{name: "End past last page", input: PageRange{2, 99}, total: 5, want: PageRange{2, 5}},
		{name: "Start past last page", input: PageRange{9, 12}, total: 5, want: PageRange{5, 5}},
		{name: "Start below one", input: PageRange{0, 2}, total: 5, want: PageRange{1, 2}},
		{name: "Negative start", input: PageRange{-4, 1}, total: 5, want: PageRange{1, 1}},
		{name: "Inverted range", input: PageRange{4, 2}, total: 5, want: PageRange{4, 4}},
		{name: "Negative end", input: PageRange{3, -1}, total: 5, want: PageRange{3, 3}},
		{name: "Single page document", input: PageRange{3, 7}, total: 1, want: PageRange{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.input.Clamp(tt.total); got != tt.want {
				t.Errorf("%+v.Clamp(%d) = %+v, want %+v", tt.input, tt.total, got, tt.want)
			}
		})
	}
}

func TestExtract_AllPages(t *testing.T) {
	data := testutil.BuildPDF(t, "Alpha page text", "Bravo page text", "Charlie page text")

	result, err := Extract(data, nil)
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}

	if result.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", result.TotalPages)
	}
	for _, want := range []string{"Alpha", "Bravo", "Charlie"} {
		if !strings.Contains(result.Text, want) {
			t.Errorf("Text %q does not contain %q", result.Text, want)
		}
	}
	if result.FirstPage != 1 || result.LastPage != 3 {
		t.Errorf("selection = %d..%d, want 1..3", result.FirstPage, result.LastPage)
	}
}

func TestExtract_PageRanges(t *testing.T) {
	data := testutil.BuildPDF(t, "Alpha page text", "Bravo page text", "Charlie page text")

	tests := []struct {
		name     string
		rng      PageRange
		contains []string
		excludes []string
	}{
		{
			name:     "Middle page only",
			rng:      PageRange{2, 2},
			contains: []string{"Bravo"},
			excludes: []string{"Alpha", "Charlie"},
		},
		{
			name:     "Start beyond total selects the last page",
			rng:      PageRange{10, 20},
			contains: []string{"Charlie"},
			excludes: []string{"Alpha", "Bravo"},
		},
		{
			name:     "End before start selects the start page",
			rng:      PageRange{2, 1},
			contains: []string{"Bravo"},
			excludes: []string{"Alpha", "Charlie"},
		},
		{
			name:     "Start below one begins at the first page",
			rng:      PageRange{-3, 2},
			contains: []string{"Alpha", "Bravo"},
			excludes: []string{"Charlie"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := tt.rng
			result, err := Extract(data, &rng)
			if err != nil {
				t.Fatalf("Extract() unexpected error: %v", err)
			}
			if result.TotalPages != 3 {
				t.Errorf("TotalPages = %d, want 3", result.TotalPages)
			}
			for _, want := range tt.contains {
				if !strings.Contains(result.Text, want) {
					t.Errorf("Text %q does not contain %q", result.Text, want)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(result.Text, unwanted) {
					t.Errorf("Text %q unexpectedly contains %q", result.Text, unwanted)
				}
			}
		})
	}
}

func TestExtract_PagesWithoutText(t *testing.T) {
	data := testutil.BuildPDF(t, "Only text here", "")

	rng := PageRange{2, 2}
	result, err := Extract(data, &rng)
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
	if strings.TrimSpace(result.Text) != "" {
		t.Errorf("Text = %q, want empty for an image-only page", result.Text)
	}
	if result.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", result.TotalPages)
	}

	result, err = Extract(data, nil)
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
	if !strings.Contains(result.Text, "Only text here") {
		t.Errorf("Text = %q, want page one text", result.Text)
	}
}

// rawPDF writes objects numbered from 1 with a valid xref table. Object 1
// must be the catalog.
func rawPDF(objects ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, offset := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offset)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func contentStream(dict, content string) string {
	return fmt.Sprintf("<< /Length %d %s>>\nstream\n%s\nendstream", len(content), dict, content)
}

func TestExtract_UndecodablePageIsSkipped(t *testing.T) {
	page := "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 7 0 R >> >> /Contents %d 0 R >>"
	hidden := hex.EncodeToString([]byte("BT /F1 12 Tf 72 712 Td (Hidden page two) Tj ET")) + ">"

	// ASCIIHexDecode is not supported by the parser, so page 2 cannot be read
	data := rawPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 >>",
		fmt.Sprintf(page, 5),
		fmt.Sprintf(page, 6),
		contentStream("", "BT /F1 12 Tf 72 712 Td (Hello page one) Tj ET"),
		contentStream("/Filter /ASCIIHexDecode ", hidden),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	)

	result, err := Extract(data, nil)
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
	if result.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", result.TotalPages)
	}
	if !strings.Contains(result.Text, "Hello page one") {
		t.Errorf("Text = %q, want page one text", result.Text)
	}
	if strings.Contains(result.Text, "Hidden") {
		t.Errorf("Text = %q, want nothing from the undecodable page", result.Text)
	}

	rng := PageRange{2, 2}
	result, err = Extract(data, &rng)
	if err != nil {
		t.Fatalf("Extract(page 2) unexpected error: %v", err)
	}
	if result.Text != "" {
		t.Errorf("Text = %q, want empty", result.Text)
	}
}

func TestExtract_InvalidDocument(t *testing.T) {
	inputs := map[string][]byte{
		"empty":      {},
		"plain text": []byte("this is not a pdf at all"),
		"truncated":  testutil.BuildPDF(t, "Alpha")[:64],
	}

	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := Extract(data, nil)
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("Extract() error = %v, want ErrInvalidDocument", err)
			}
		})
	}
}

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

// Package document extracts plain text from paginated documents (PDF).
package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/loqalabs/loqa-voice-api/internal/logging"
	"go.uber.org/zap"
)

// ErrInvalidDocument is returned when the input cannot be parsed as a PDF
var ErrInvalidDocument = errors.New("invalid document")

// PageRange is a 1-based inclusive page selection. It is not validated by
// callers; Extract clamps it into the document.
type PageRange struct {
	Start int
	End   int
}

// Result holds extracted text and the document's total page count
type Result struct {
	Text       string
	TotalPages int
	FirstPage  int // first selected page, 0 when nothing was selected
	LastPage   int // last selected page, 0 when nothing was selected
}

// Clamp limits the range to a document with total pages: Start into
// [1, total] and End into [Start, total]. The result always selects at least
// one page of a non-empty document.
func (r PageRange) Clamp(total int) PageRange {
	start := max(1, min(r.Start, total))
	end := max(start, min(r.End, total))
	return PageRange{Start: start, End: end}
}

// Extract returns the text of the selected pages of a PDF. A nil pageRange
// selects every page. Each page that yields text contributes it followed by a
// newline; pages without recoverable text contribute nothing. Only input that
// cannot be parsed at all is an error, empty text is not.
func Extract(data []byte, pageRange *PageRange) (result *Result, err error) {
	// The parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrInvalidDocument, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	total := reader.NumPage()
	result = &Result{TotalPages: total}
	if total == 0 {
		return result, nil
	}

	selected := PageRange{Start: 1, End: total}
	if pageRange != nil {
		selected = pageRange.Clamp(total)
	}
	result.FirstPage = selected.Start
	result.LastPage = selected.End

	var text strings.Builder
	for num := selected.Start; num <= selected.End; num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			logging.LogWarn("Skipping page without decodable text",
				zap.Int("page", num),
				zap.Error(err),
			)
			continue
		}
		if pageText != "" {
			text.WriteString(pageText)
			text.WriteString("\n")
		}
	}
	result.Text = text.String()

	logging.LogDocumentOperation("extract",
		zap.Int("total_pages", total),
		zap.Int("first_page", selected.Start),
		zap.Int("last_page", selected.End),
		zap.Int("text_length", len(result.Text)),
	)

	return result, nil
}

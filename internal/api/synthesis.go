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
	"strings"
	"unicode/utf8"

	"github.com/loqalabs/loqa-voice-api/internal/document"
	"github.com/loqalabs/loqa-voice-api/internal/events"
	"github.com/loqalabs/loqa-voice-api/internal/logging"
	"github.com/loqalabs/loqa-voice-api/internal/security"
	"github.com/loqalabs/loqa-voice-api/internal/speech"
	"github.com/loqalabs/loqa-voice-api/internal/uploads"
	"go.uber.org/zap"
)

// synthesisFunc produces audio for one request and fills in event
type synthesisFunc func(w http.ResponseWriter, r *http.Request, event *events.SynthesisEvent) (*speech.Result, error)

// handleSynthesis runs synth, records the outcome and streams the audio only
// once it is complete
func (h *Handler) handleSynthesis(endpoint string, synth synthesisFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}

		event := events.NewSynthesisEvent(endpoint, RequestIDFromContext(r.Context()))

		result, err := synth(w, r, event)
		if err == nil && len(result.Audio) == 0 {
			err = errors.New("synthesis produced no audio")
		}

		if err != nil {
			event.SetError(err)
			h.record(r.Context(), event)
			writeError(w, err)
			return
		}

		event.SetAudio(result.Format, len(result.Audio))
		h.record(r.Context(), event)

		logging.LogTTSOperation("request_complete",
			zap.String("endpoint", endpoint),
			zap.String("engine", event.Engine),
			zap.Int64("processing_time_ms", event.ProcessingTime),
			zap.Int("audio_bytes", len(result.Audio)),
		)
		writeAudio(w, result)
	}
}

func (h *Handler) record(ctx context.Context, event *events.SynthesisEvent) {
	if h.recorder == nil {
		return
	}
	// Recording must not be cut short by a client that already hung up
	h.recorder.Record(context.WithoutCancel(ctx), event)
}

// tts speaks form text in the generic voice
func (h *Handler) tts(w http.ResponseWriter, r *http.Request, event *events.SynthesisEvent) (*speech.Result, error) {
	if err := h.parseForm(w, r); err != nil {
		return nil, err
	}

	text, err := requiredValue(r, "text")
	if err != nil {
		return nil, err
	}
	lang := formValue(r, "lang", defaultLang)
	slow, err := formBool(r, "slow", false)
	if err != nil {
		return nil, err
	}

	event.Engine = h.synthesizer.Engine()
	event.Language = lang
	event.Slow = slow
	event.TextLength = utf8.RuneCountInString(text)

	return h.synthesizer.Synthesize(r.Context(), text, lang, slow)
}

// cloneVoice speaks form text in the voice of an uploaded recording
func (h *Handler) cloneVoice(w http.ResponseWriter, r *http.Request, event *events.SynthesisEvent) (*speech.Result, error) {
	if err := h.parseForm(w, r); err != nil {
		return nil, err
	}

	text, err := requiredValue(r, "text")
	if err != nil {
		return nil, err
	}
	voiceName, err := requiredValue(r, "voice_name")
	if err != nil {
		return nil, err
	}
	lang := formValue(r, "lang", defaultLang)

	event.Engine = h.cloner.Engine()
	event.Language = lang
	event.VoiceName = voiceName
	event.TextLength = utf8.RuneCountInString(text)

	referencePath, release, err := h.localizeVoice(r.Context(), voiceName)
	if err != nil {
		return nil, err
	}
	defer release()

	return h.cloner.Clone(r.Context(), text, referencePath, lang)
}

// pdfTTS speaks the text of an uploaded document in the generic voice
func (h *Handler) pdfTTS(w http.ResponseWriter, r *http.Request, event *events.SynthesisEvent) (*speech.Result, error) {
	if err := h.parseForm(w, r); err != nil {
		return nil, err
	}

	pdfName, err := requiredValue(r, "pdf_name")
	if err != nil {
		return nil, err
	}
	lang := formValue(r, "lang", defaultLang)
	slow, err := formBool(r, "slow", false)
	if err != nil {
		return nil, err
	}
	pages, err := pageRange(r)
	if err != nil {
		return nil, err
	}

	event.Engine = h.synthesizer.Engine()
	event.Language = lang
	event.Slow = slow
	event.DocumentName = pdfName

	data, err := h.loadDocument(r.Context(), pdfName)
	if err != nil {
		return nil, err
	}

	text, err := extractText(data, pages, event)
	if err != nil {
		return nil, err
	}

	return h.synthesizer.Synthesize(r.Context(), text, lang, slow)
}

// pdfCloneVoice speaks the text of an uploaded document in the voice of an
// uploaded recording
func (h *Handler) pdfCloneVoice(w http.ResponseWriter, r *http.Request, event *events.SynthesisEvent) (*speech.Result, error) {
	if err := h.parseForm(w, r); err != nil {
		return nil, err
	}

	pdfName, err := requiredValue(r, "pdf_name")
	if err != nil {
		return nil, err
	}
	voiceName, err := requiredValue(r, "voice_name")
	if err != nil {
		return nil, err
	}
	lang := formValue(r, "lang", defaultLang)
	pages, err := pageRange(r)
	if err != nil {
		return nil, err
	}

	event.Engine = h.cloner.Engine()
	event.Language = lang
	event.DocumentName = pdfName
	event.VoiceName = voiceName

	// Both names are resolved before any extraction work
	data, err := h.loadDocument(r.Context(), pdfName)
	if err != nil {
		return nil, err
	}

	referencePath, release, err := h.localizeVoice(r.Context(), voiceName)
	if err != nil {
		return nil, err
	}
	defer release()

	text, err := extractText(data, pages, event)
	if err != nil {
		return nil, err
	}

	return h.cloner.Clone(r.Context(), text, referencePath, lang)
}

// pageRange reads start_page and end_page; end_page -1 selects through the
// last page
func pageRange(r *http.Request) (*document.PageRange, error) {
	start, err := formInt(r, "start_page", defaultStartPage)
	if err != nil {
		return nil, err
	}
	end, err := formInt(r, "end_page", lastPageSentinel)
	if err != nil {
		return nil, err
	}

	if end == lastPageSentinel {
		end = math.MaxInt
	}
	return &document.PageRange{Start: start, End: end}, nil
}

// localizeVoice resolves an uploaded recording to a readable path
func (h *Handler) localizeVoice(ctx context.Context, name string) (string, func(), error) {
	path, release, err := h.store.Voices.Localize(ctx, name)
	if isUnknownUpload(err) {
		return "", nil, badRequest("Voice '%s' not found.", name)
	}
	if err != nil {
		return "", nil, err
	}
	return path, release, nil
}

func (h *Handler) loadDocument(ctx context.Context, name string) ([]byte, error) {
	data, err := h.store.Documents.Get(ctx, name)
	if isUnknownUpload(err) {
		return nil, badRequest("PDF '%s' not found.", name)
	}
	return data, err
}

// isUnknownUpload treats names that can never be stored like absent ones
func isUnknownUpload(err error) bool {
	return errors.Is(err, uploads.ErrNotFound) || errors.Is(err, uploads.ErrInvalidName)
}

func extractText(data []byte, pages *document.PageRange, event *events.SynthesisEvent) (string, error) {
	extracted, err := document.Extract(data, pages)
	if err != nil {
		return "", err
	}

	event.SetPages(extracted.FirstPage, extracted.LastPage, extracted.TotalPages)
	event.TextLength = utf8.RuneCountInString(extracted.Text)

	if strings.TrimSpace(extracted.Text) == "" {
		logging.LogDocumentOperation("no_text",
			zap.String("document", security.SanitizeLogInput(event.DocumentName)),
			zap.Int("first_page", extracted.FirstPage),
			zap.Int("last_page", extracted.LastPage),
		)
		return "", errNoText
	}
	return extracted.Text, nil
}

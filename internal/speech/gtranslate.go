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

package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/loqalabs/loqa-voice-api/internal/config"
	"github.com/loqalabs/loqa-voice-api/internal/logging"
	"go.uber.org/zap"
)

// gtranslateChunkLimit is the longest text the translate_tts endpoint accepts
const gtranslateChunkLimit = 100

const gtranslateUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// GoogleTranslateTTS synthesizes speech with the Google Translate TTS endpoint.
// Long text is spoken chunk by chunk and the MP3 frames are concatenated.
type GoogleTranslateTTS struct {
	baseURL string
	client  *http.Client
	slots   slots
}

// NewGoogleTranslateTTS creates a Google Translate TTS client
func NewGoogleTranslateTTS(cfg config.SpeechConfig) (*GoogleTranslateTTS, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("TTS URL cannot be empty")
	}

	return &GoogleTranslateTTS{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		slots:   newSlots(cfg.MaxConcurrent),
	}, nil
}

// Engine names the backend
func (g *GoogleTranslateTTS) Engine() string {
	return config.SpeechEngineGTranslate
}

// Synthesize converts text to MP3 audio
func (g *GoogleTranslateTTS) Synthesize(ctx context.Context, text, lang string, slow bool) (*Result, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	release, err := g.slots.acquire(ctx, 5*time.Second)
	if err != nil {
		return nil, err
	}
	defer release()

	startTime := time.Now()
	chunks := splitText(text, gtranslateChunkLimit)

	logging.LogTTSOperation("synthesis_start",
		zap.String("engine", g.Engine()),
		zap.String("lang", lang),
		zap.Bool("slow", slow),
		zap.Int("text_length", len(text)),
		zap.Int("chunks", len(chunks)),
	)

	var audio bytes.Buffer
	for idx, chunk := range chunks {
		data, err := g.fetchChunk(ctx, chunk, lang, slow, idx, len(chunks))
		if err != nil {
			logging.LogError(err, "TTS chunk request failed",
				zap.String("engine", g.Engine()),
				zap.Int("chunk", idx),
			)
			return nil, err
		}
		audio.Write(data)
	}

	logging.LogTTSOperation("synthesis_complete",
		zap.String("engine", g.Engine()),
		zap.Duration("processing_time", time.Since(startTime)),
		zap.Int("audio_bytes", audio.Len()),
	)

	return &Result{Audio: audio.Bytes(), Format: FormatMP3}, nil
}

func (g *GoogleTranslateTTS) fetchChunk(ctx context.Context, chunk, lang string, slow bool, idx, total int) ([]byte, error) {
	speed := "1"
	if slow {
		speed = "0.3"
	}

	query := url.Values{}
	query.Set("ie", "UTF-8")
	query.Set("client", "tw-ob")
	query.Set("q", chunk)
	query.Set("tl", lang)
	query.Set("ttsspeed", speed)
	query.Set("total", strconv.Itoa(total))
	query.Set("idx", strconv.Itoa(idx))
	query.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/translate_tts?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", gtranslateUserAgent)
	req.Header.Set("Referer", g.baseURL+"/")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("TTS HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("TTS request failed with status %d (lang %q): %s", resp.StatusCode, lang, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read TTS response: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("TTS engine returned no audio for chunk %d", idx)
	}

	return data, nil
}

// Close cleans up resources
func (g *GoogleTranslateTTS) Close() error {
	g.client.CloseIdleConnections()
	return nil
}

// splitText breaks text into chunks of at most limit runes. Chunks end at
// sentence punctuation where possible, otherwise at word boundaries; a single
// word longer than limit is cut.
func splitText(text string, limit int) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, word := range strings.Fields(text) {
		for utf8.RuneCountInString(word) > limit {
			flush()
			runes := []rune(word)
			chunks = append(chunks, string(runes[:limit]))
			word = string(runes[limit:])
		}
		if word == "" {
			continue
		}

		wordLen := utf8.RuneCountInString(word)
		if currentLen > 0 && currentLen+1+wordLen > limit {
			flush()
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(word)
		currentLen += wordLen

		if endsSentence(word) {
			flush()
		}
	}
	flush()

	return chunks
}

func endsSentence(word string) bool {
	last, _ := utf8.DecodeLastRuneInString(word)
	switch last {
	case '.', '!', '?', ';', ':', '。', '！', '？', '…':
		return true
	}
	return false
}

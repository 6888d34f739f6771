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
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/loqalabs/loqa-voice-api/internal/config"
	"github.com/loqalabs/loqa-voice-api/internal/logging"
	"go.uber.org/zap"
)

// HTTPCloner clones voices through a sidecar that keeps the cloning model
// loaded. The sidecar exposes GET /health and POST /clone (multipart fields
// text, language and a speaker_wav file) returning WAV audio.
type HTTPCloner struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	slots   slots

	mu    sync.Mutex
	ready bool
}

// NewHTTPCloner creates a sidecar backed cloner
func NewHTTPCloner(cfg config.CloneConfig) (*HTTPCloner, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("clone URL cannot be empty")
	}

	return &HTTPCloner{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		client:  &http.Client{},
		timeout: cfg.Timeout,
		slots:   newSlots(cfg.MaxConcurrent),
	}, nil
}

// Engine names the backend
func (c *HTTPCloner) Engine() string {
	return config.CloneEngineHTTP
}

// ensureReady probes the sidecar until it reports healthy once; the model
// may still be loading on the first calls
func (c *HTTPCloner) ensureReady(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("clone service unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clone service not ready: status %d", resp.StatusCode)
	}

	c.ready = true
	logging.LogTTSOperation("clone_engine_ready",
		zap.String("engine", c.Engine()),
		zap.String("url", c.baseURL),
	)
	return nil
}

// Clone speaks text in the voice of the recording at referencePath
func (c *HTTPCloner) Clone(ctx context.Context, text, referencePath, lang string) (*Result, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	reference, err := os.ReadFile(referencePath)
	if err != nil {
		return nil, fmt.Errorf("reference recording unreadable: %w", err)
	}

	if err := c.ensureReady(ctx); err != nil {
		return nil, err
	}

	release, err := c.slots.acquire(ctx, 0)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	body, contentType, err := buildCloneForm(text, lang, filepath.Base(referencePath), reference)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	logging.LogTTSOperation("clone_start",
		zap.String("engine", c.Engine()),
		zap.String("lang", lang),
		zap.Int("text_length", len(text)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/clone", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create clone request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "audio/wav")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clone HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("clone request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read clone response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("clone service returned no audio")
	}

	logging.LogTTSOperation("clone_complete",
		zap.String("engine", c.Engine()),
		zap.Duration("processing_time", time.Since(startTime)),
		zap.Int("audio_bytes", len(audio)),
	)

	return &Result{Audio: audio, Format: FormatWAV}, nil
}

func buildCloneForm(text, lang, filename string, reference []byte) (io.Reader, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("text", text); err != nil {
		return nil, "", fmt.Errorf("failed to write clone form: %w", err)
	}
	if err := writer.WriteField("language", lang); err != nil {
		return nil, "", fmt.Errorf("failed to write clone form: %w", err)
	}

	part, err := writer.CreateFormFile("speaker_wav", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write clone form: %w", err)
	}
	if _, err := part.Write(reference); err != nil {
		return nil, "", fmt.Errorf("failed to write clone form: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to write clone form: %w", err)
	}
	return &body, writer.FormDataContentType(), nil
}

// Close cleans up resources
func (c *HTTPCloner) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loqalabs/loqa-voice-api/internal/config"
	"github.com/loqalabs/loqa-voice-api/internal/logging"
	"go.uber.org/zap"
)

// slowSpeedFactor scales the configured speed for slow speech
const slowSpeedFactor = 0.75

// OpenAITTSRequest represents a request to an OpenAI-compatible TTS API
type OpenAITTSRequest struct {
	Model    string  `json:"model"`
	Input    string  `json:"input"`
	Voice    string  `json:"voice"`
	Format   string  `json:"response_format"`
	Speed    float32 `json:"speed,omitempty"`
	LangCode string  `json:"lang_code,omitempty"`
}

// OpenAITTSClient implements Synthesizer for OpenAI-compatible TTS services
// such as Kokoro
type OpenAITTSClient struct {
	baseURL string
	client  *http.Client
	config  config.SpeechConfig
	slots   slots
}

// NewOpenAITTSClient creates a new OpenAI-compatible TTS client and checks
// that the service answers
func NewOpenAITTSClient(cfg config.SpeechConfig) (*OpenAITTSClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("TTS URL cannot be empty")
	}

	ttsClient := &OpenAITTSClient{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		config:  cfg,
		slots:   newSlots(cfg.MaxConcurrent),
	}

	if err := ttsClient.testConnection(); err != nil {
		return nil, fmt.Errorf("failed to connect to TTS service: %w", err)
	}

	if logging.Sugar != nil {
		logging.Sugar.Infow("🔊 TTS client initialized",
			"url", cfg.URL,
			"voice", cfg.Voice,
			"max_concurrent", cfg.MaxConcurrent,
		)
	}

	return ttsClient, nil
}

// Engine names the backend
func (c *OpenAITTSClient) Engine() string {
	return config.SpeechEngineOpenAI
}

// Synthesize converts text to MP3 audio using the /audio/speech endpoint
func (c *OpenAITTSClient) Synthesize(ctx context.Context, text, lang string, slow bool) (*Result, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	// Acquire semaphore slot for concurrency control
	release, err := c.slots.acquire(ctx, 5*time.Second)
	if err != nil {
		return nil, err
	}
	defer release()

	startTime := time.Now()

	speed := c.config.Speed
	if slow {
		speed *= slowSpeedFactor
	}

	request := OpenAITTSRequest{
		Model:    c.config.Model,
		Input:    text,
		Voice:    c.config.Voice,
		Format:   FormatMP3,
		Speed:    speed,
		LangCode: lang,
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	logging.LogTTSOperation("synthesis_start",
		zap.String("engine", c.Engine()),
		zap.String("voice", request.Voice),
		zap.String("lang", lang),
		zap.Int("text_length", len(text)),
		zap.Float32("speed", speed),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/speech", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/*")

	resp, err := c.client.Do(req)
	if err != nil {
		logging.LogError(err, "TTS HTTP request failed",
			zap.String("voice", request.Voice),
			zap.Int("text_length", len(text)),
		)
		return nil, fmt.Errorf("TTS HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logging.LogWarn("TTS request failed",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response_body", string(body)),
		)
		return nil, fmt.Errorf("TTS request failed with status %d: %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read TTS response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("TTS service returned no audio")
	}

	logging.LogTTSOperation("synthesis_complete",
		zap.String("engine", c.Engine()),
		zap.Duration("processing_time", time.Since(startTime)),
		zap.String("content_type", resp.Header.Get("Content-Type")),
		zap.Int("audio_bytes", len(audio)),
	)

	return &Result{Audio: audio, Format: FormatMP3}, nil
}

// Close cleans up resources
func (c *OpenAITTSClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// testConnection tests the connection to the TTS service
func (c *OpenAITTSClient) testConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/audio/voices", nil)
	if err != nil {
		return fmt.Errorf("failed to create test request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status %d", resp.StatusCode)
	}

	return nil
}

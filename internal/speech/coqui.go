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
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/loqalabs/loqa-voice-api/internal/config"
	"github.com/loqalabs/loqa-voice-api/internal/logging"
	"go.uber.org/zap"
)

// CoquiCloner clones voices with the Coqui TTS command line tool. Every call
// runs one process that loads the model, so calls are bounded by the
// configured number of slots; with one slot, clones run strictly one after
// another.
type CoquiCloner struct {
	binary  string
	model   string
	timeout time.Duration
	slots   slots

	resolveOnce sync.Once
	binaryPath  string
	resolveErr  error
}

// NewCoquiCloner creates a CLI backed cloner. The binary is looked up on
// first use, not here, so the service starts without the tool installed.
func NewCoquiCloner(cfg config.CloneConfig) *CoquiCloner {
	return &CoquiCloner{
		binary:  cfg.Binary,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		slots:   newSlots(cfg.MaxConcurrent),
	}
}

// Engine names the backend
func (c *CoquiCloner) Engine() string {
	return config.CloneEngineCoqui
}

func (c *CoquiCloner) resolve() (string, error) {
	c.resolveOnce.Do(func() {
		c.binaryPath, c.resolveErr = exec.LookPath(c.binary)
		if c.resolveErr != nil {
			c.resolveErr = fmt.Errorf("coqui binary %q not available: %w", c.binary, c.resolveErr)
			return
		}
		logging.LogTTSOperation("clone_engine_ready",
			zap.String("engine", c.Engine()),
			zap.String("binary", c.binaryPath),
			zap.String("model", c.model),
		)
	})
	return c.binaryPath, c.resolveErr
}

// Clone speaks text in the voice of the recording at referencePath
func (c *CoquiCloner) Clone(ctx context.Context, text, referencePath, lang string) (*Result, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	if _, err := os.Stat(referencePath); err != nil {
		return nil, fmt.Errorf("reference recording unreadable: %w", err)
	}

	binary, err := c.resolve()
	if err != nil {
		return nil, err
	}

	release, err := c.slots.acquire(ctx, 0)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	workDir, err := os.MkdirTemp("", "voice-clone-")
	if err != nil {
		return nil, fmt.Errorf("failed to create clone work directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	outPath := filepath.Join(workDir, "out.wav")
	startTime := time.Now()

	logging.LogTTSOperation("clone_start",
		zap.String("engine", c.Engine()),
		zap.String("lang", lang),
		zap.Int("text_length", len(text)),
	)

	cmd := exec.CommandContext(ctx, binary,
		"--model_name", c.model,
		"--text", text,
		"--speaker_wav", referencePath,
		"--language_idx", lang,
		"--out_path", outPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("coqui TTS: %w: %s", err, lastLine(stderr.String()))
	}

	audio, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("coqui TTS produced no output: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("coqui TTS produced empty audio")
	}

	logging.LogTTSOperation("clone_complete",
		zap.String("engine", c.Engine()),
		zap.Duration("processing_time", time.Since(startTime)),
		zap.Int("audio_bytes", len(audio)),
	)

	return &Result{Audio: audio, Format: FormatWAV}, nil
}

// Close releases resources
func (c *CoquiCloner) Close() error {
	return nil
}

// lastLine keeps error messages short; the CLI prints full tracebacks
func lastLine(output string) string {
	output = strings.TrimSpace(output)
	if idx := strings.LastIndexByte(output, '\n'); idx >= 0 {
		return output[idx+1:]
	}
	return output
}

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
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/loqalabs/loqa-voice-api/internal/config"
)

// fakeCoquiScript mimics the tts CLI: it records its arguments, fails for the
// "xx" language and writes a tiny WAV to --out_path. A lock directory detects
// overlapping runs.
const fakeCoquiScript = `#!/bin/sh
dir=$(dirname "$0")
echo "$@" > "$dir/args.txt"
mkdir "$dir/lock" 2>/dev/null || { echo "overlapping run" >&2; exit 3; }
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--out_path" ]; then out="$2"; fi
  if [ "$1" = "--language_idx" ] && [ "$2" = "xx" ]; then
    rmdir "$dir/lock"
    echo "Traceback (most recent call last):" >&2
    echo "ValueError: language xx is not supported" >&2
    exit 1
  fi
  shift
done
sleep 0.1
printf 'RIFF....WAVEfmt ' > "$out"
rmdir "$dir/lock"
`

func newFakeCoqui(t *testing.T, slots int) (*CoquiCloner, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake coqui binary is a shell script")
	}

	dir := t.TempDir()
	binary := filepath.Join(dir, "tts")
	if err := os.WriteFile(binary, []byte(fakeCoquiScript), 0o755); err != nil {
		t.Fatalf("failed to write fake binary: %v", err)
	}

	cloner := NewCoquiCloner(config.CloneConfig{
		Engine:        config.CloneEngineCoqui,
		Binary:        binary,
		Model:         "tts_models/multilingual/multi-dataset/your_tts",
		MaxConcurrent: slots,
	})
	return cloner, dir
}

func writeReference(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.wav")
	if err := os.WriteFile(path, []byte("RIFF reference"), 0o600); err != nil {
		t.Fatalf("failed to write reference: %v", err)
	}
	return path
}

func TestCoquiCloner_Clone(t *testing.T) {
	cloner, dir := newFakeCoqui(t, 1)
	reference := writeReference(t)

	result, err := cloner.Clone(context.Background(), "Hello there", reference, "en")
	if err != nil {
		t.Fatalf("Clone() unexpected error: %v", err)
	}

	if result.Format != FormatWAV {
		t.Errorf("Expected format wav, got %q", result.Format)
	}
	if !strings.HasPrefix(string(result.Audio), "RIFF") {
		t.Errorf("Expected WAV audio, got %q", result.Audio)
	}

	args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	if err != nil {
		t.Fatalf("fake binary did not record arguments: %v", err)
	}
	for _, want := range []string{
		"--model_name tts_models/multilingual/multi-dataset/your_tts",
		"--speaker_wav " + reference,
		"--language_idx en",
		"--text Hello there",
	} {
		if !strings.Contains(string(args), want) {
			t.Errorf("arguments %q do not contain %q", args, want)
		}
	}
}

func TestCoquiCloner_Failures(t *testing.T) {
	cloner, _ := newFakeCoqui(t, 1)
	reference := writeReference(t)

	t.Run("Unsupported language", func(t *testing.T) {
		_, err := cloner.Clone(context.Background(), "Hello", reference, "xx")
		if err == nil {
			t.Fatal("Expected error, got nil")
		}
		if !strings.Contains(err.Error(), "language xx is not supported") {
			t.Errorf("Expected CLI error message, got: %v", err)
		}
	})

	t.Run("Missing reference", func(t *testing.T) {
		_, err := cloner.Clone(context.Background(), "Hello", filepath.Join(t.TempDir(), "none.wav"), "en")
		if err == nil || !strings.Contains(err.Error(), "reference recording unreadable") {
			t.Errorf("Expected unreadable reference error, got: %v", err)
		}
	})

	t.Run("Empty text", func(t *testing.T) {
		_, err := cloner.Clone(context.Background(), "  ", reference, "en")
		if !errors.Is(err, ErrEmptyText) {
			t.Errorf("Expected ErrEmptyText, got: %v", err)
		}
	})
}

func TestCoquiCloner_MissingBinary(t *testing.T) {
	cloner := NewCoquiCloner(config.CloneConfig{
		Binary:        filepath.Join(t.TempDir(), "no-such-tts"),
		Model:         "model",
		MaxConcurrent: 1,
	})

	_, err := cloner.Clone(context.Background(), "Hello", writeReference(t), "en")
	if err == nil || !strings.Contains(err.Error(), "not available") {
		t.Errorf("Expected missing binary error, got: %v", err)
	}
}

func TestCoquiCloner_SerializesCalls(t *testing.T) {
	cloner, _ := newFakeCoqui(t, 1)
	reference := writeReference(t)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cloner.Clone(context.Background(), "Hello", reference, "en"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Clone() failed: %v", err)
	}
}

func TestCoquiCloner_CancelledWhileQueued(t *testing.T) {
	cloner, _ := newFakeCoqui(t, 1)
	reference := writeReference(t)

	release, err := cloner.slots.acquire(context.Background(), 0)
	if err != nil {
		t.Fatalf("acquire() unexpected error: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := cloner.Clone(ctx, "Hello", reference, "en"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded while queued, got: %v", err)
	}
}

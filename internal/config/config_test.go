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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configEnvKeys = []string{
	"VOICE_API_CONFIG", "VOICE_API_HOST", "VOICE_API_PORT", "VOICE_API_READ_TIMEOUT",
	"VOICE_API_WRITE_TIMEOUT", "VOICE_API_MAX_UPLOAD_BYTES", "UPLOADS_BACKEND",
	"UPLOADS_BASE_DIR", "SPEECH_ENGINE", "SPEECH_URL", "SPEECH_TIMEOUT",
	"SPEECH_MAX_CONCURRENT", "SPEECH_VOICE", "SPEECH_MODEL", "SPEECH_SPEED",
	"CLONE_ENGINE", "CLONE_BINARY", "CLONE_MODEL", "CLONE_URL", "CLONE_TIMEOUT",
	"CLONE_MAX_CONCURRENT", "HISTORY_DB_PATH", "LOG_LEVEL", "LOG_FORMAT", "NATS_URL",
	"NATS_SUBJECT", "NATS_MAX_RECONNECT", "NATS_RECONNECT_WAIT",
}

// clearEnv blanks every variable Load reads; empty values count as unset
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8000)
	}
	if cfg.Server.WriteTimeout != 0 {
		t.Errorf("Server.WriteTimeout = %v, want 0", cfg.Server.WriteTimeout)
	}
	if cfg.Server.MaxUploadBytes != 100<<20 {
		t.Errorf("Server.MaxUploadBytes = %d, want %d", cfg.Server.MaxUploadBytes, 100<<20)
	}
	if cfg.Uploads.Backend != UploadBackendDir {
		t.Errorf("Uploads.Backend = %q, want %q", cfg.Uploads.Backend, UploadBackendDir)
	}
	if cfg.Speech.Engine != SpeechEngineGTranslate {
		t.Errorf("Speech.Engine = %q, want %q", cfg.Speech.Engine, SpeechEngineGTranslate)
	}
	if cfg.Speech.URL != "https://translate.google.com" {
		t.Errorf("Speech.URL = %q, want %q", cfg.Speech.URL, "https://translate.google.com")
	}
	if cfg.Clone.Engine != CloneEngineCoqui {
		t.Errorf("Clone.Engine = %q, want %q", cfg.Clone.Engine, CloneEngineCoqui)
	}
	if cfg.Clone.Model != "tts_models/multilingual/multi-dataset/your_tts" {
		t.Errorf("Clone.Model = %q", cfg.Clone.Model)
	}
	if cfg.Clone.MaxConcurrent != 1 {
		t.Errorf("Clone.MaxConcurrent = %d, want 1", cfg.Clone.MaxConcurrent)
	}
	if cfg.History.DBPath != "" {
		t.Errorf("History.DBPath = %q, want empty", cfg.History.DBPath)
	}
	if cfg.NATS.URL != "" {
		t.Errorf("NATS.URL = %q, want empty", cfg.NATS.URL)
	}
	if cfg.NATS.Subject != "voiceapi.synthesis.events" {
		t.Errorf("NATS.Subject = %q", cfg.NATS.Subject)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name: "Server configuration",
			envVars: map[string]string{
				"VOICE_API_HOST":          "127.0.0.1",
				"VOICE_API_PORT":          "3000",
				"VOICE_API_WRITE_TIMEOUT": "2m",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Server.Host != "127.0.0.1" {
					t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
				}
				if cfg.Server.Port != 3000 {
					t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 3000)
				}
				if cfg.Server.WriteTimeout != 2*time.Minute {
					t.Errorf("Server.WriteTimeout = %v, want 2m", cfg.Server.WriteTimeout)
				}
			},
		},
		{
			name: "OpenAI engine switches default URL",
			envVars: map[string]string{
				"SPEECH_ENGINE": "openai",
				"SPEECH_SPEED":  "1.25",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Speech.URL != "http://localhost:8880/v1" {
					t.Errorf("Speech.URL = %q, want %q", cfg.Speech.URL, "http://localhost:8880/v1")
				}
				if cfg.Speech.Speed != 1.25 {
					t.Errorf("Speech.Speed = %f, want 1.25", cfg.Speech.Speed)
				}
			},
		},
		{
			name: "Invalid numbers fall back to defaults",
			envVars: map[string]string{
				"VOICE_API_PORT":        "not-a-number",
				"SPEECH_TIMEOUT":        "soon",
				"SPEECH_MAX_CONCURRENT": "many",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 8000 {
					t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8000)
				}
				if cfg.Speech.Timeout != 30*time.Second {
					t.Errorf("Speech.Timeout = %v, want 30s", cfg.Speech.Timeout)
				}
				if cfg.Speech.MaxConcurrent != 10 {
					t.Errorf("Speech.MaxConcurrent = %d, want 10", cfg.Speech.MaxConcurrent)
				}
			},
		},
		{
			name: "NATS uploads backend",
			envVars: map[string]string{
				"UPLOADS_BACKEND": "nats",
				"NATS_URL":        "nats://nats:4222",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Uploads.Backend != UploadBackendNATS {
					t.Errorf("Uploads.Backend = %q, want %q", cfg.Uploads.Backend, UploadBackendNATS)
				}
				if cfg.NATS.URL != "nats://nats:4222" {
					t.Errorf("NATS.URL = %q", cfg.NATS.URL)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			tt.validate(t, cfg)
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "voice-api.toml")
	content := `
[server]
port = 9090
read_timeout = "45s"

[clone]
engine = "http"
url = "http://xtts:8020"
max_concurrent = 2

[history]
db_path = "/var/lib/voice-api/history.db"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("VOICE_API_CONFIG", path)
	// Environment wins over the file
	t.Setenv("CLONE_MAX_CONCURRENT", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 45s", cfg.Server.ReadTimeout)
	}
	if cfg.Clone.Engine != CloneEngineHTTP {
		t.Errorf("Clone.Engine = %q, want %q", cfg.Clone.Engine, CloneEngineHTTP)
	}
	if cfg.Clone.URL != "http://xtts:8020" {
		t.Errorf("Clone.URL = %q", cfg.Clone.URL)
	}
	if cfg.Clone.MaxConcurrent != 3 {
		t.Errorf("Clone.MaxConcurrent = %d, want 3", cfg.Clone.MaxConcurrent)
	}
	if cfg.History.DBPath != "/var/lib/voice-api/history.db" {
		t.Errorf("History.DBPath = %q", cfg.History.DBPath)
	}
}

func TestLoad_ConfigFileErrors(t *testing.T) {
	clearEnv(t)

	t.Run("missing file", func(t *testing.T) {
		t.Setenv("VOICE_API_CONFIG", filepath.Join(t.TempDir(), "absent.toml"))
		if _, err := Load(); err == nil {
			t.Fatal("expected error for missing config file")
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		if err := os.WriteFile(path, []byte("[server\nport ="), 0o600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}
		t.Setenv("VOICE_API_CONFIG", path)
		if _, err := Load(); err == nil {
			t.Fatal("expected error for malformed config file")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr string
	}{
		{name: "port too large", envVars: map[string]string{"VOICE_API_PORT": "70000"}, wantErr: "invalid server port"},
		{name: "unknown uploads backend", envVars: map[string]string{"UPLOADS_BACKEND": "s3"}, wantErr: "unknown uploads backend"},
		{name: "nats backend without url", envVars: map[string]string{"UPLOADS_BACKEND": "nats"}, wantErr: "requires NATS_URL"},
		{name: "unknown speech engine", envVars: map[string]string{"SPEECH_ENGINE": "espeak"}, wantErr: "unknown speech engine"},
		{name: "non-positive speed", envVars: map[string]string{"SPEECH_SPEED": "0"}, wantErr: "speed must be positive"},
		{name: "unknown clone engine", envVars: map[string]string{"CLONE_ENGINE": "rvc"}, wantErr: "unknown clone engine"},
		{name: "zero clone slots", envVars: map[string]string{"CLONE_MAX_CONCURRENT": "0"}, wantErr: "clone max concurrent"},
		{name: "negative upload limit", envVars: map[string]string{"VOICE_API_MAX_UPLOAD_BYTES": "-1"}, wantErr: "max upload bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			_, err := Load()
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

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
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Generic speech engines
const (
	SpeechEngineGTranslate = "gtranslate"
	SpeechEngineOpenAI     = "openai"
)

// Voice cloning engines
const (
	CloneEngineCoqui = "coqui"
	CloneEngineHTTP  = "http"
)

// Upload store backends
const (
	UploadBackendDir  = "dir"
	UploadBackendNATS = "nats"
)

// Config holds all configuration for the voice API
type Config struct {
	Server  ServerConfig
	Uploads UploadsConfig
	Speech  SpeechConfig
	Clone   CloneConfig
	History HistoryConfig
	Logging LoggingConfig
	NATS    NATSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration // 0 disables the timeout; synthesis can be slow
	MaxUploadBytes int64         // 0 disables the limit
}

// UploadsConfig selects where uploaded voices and documents live
type UploadsConfig struct {
	Backend string // "dir" or "nats"
	BaseDir string // parent for the temporary directories, defaults to os.TempDir()
}

// SpeechConfig holds generic (non-cloned) text-to-speech configuration
type SpeechConfig struct {
	Engine        string        // "gtranslate" or "openai"
	URL           string        // Base URL of the engine
	Timeout       time.Duration // Per-request timeout
	MaxConcurrent int           // Maximum concurrent requests to the engine
	Voice         string        // openai only
	Model         string        // openai only
	Speed         float32       // openai only, normal speaking rate
}

// CloneConfig holds voice cloning configuration
type CloneConfig struct {
	Engine        string        // "coqui" or "http"
	Binary        string        // coqui CLI binary
	Model         string        // coqui model name
	URL           string        // http sidecar base URL
	Timeout       time.Duration // 0 means no timeout
	MaxConcurrent int           // 1 serializes all clone calls
}

// HistoryConfig holds synthesis history storage configuration
type HistoryConfig struct {
	DBPath string // empty keeps history in memory for the process lifetime
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// NATSConfig holds NATS messaging configuration
type NATSConfig struct {
	URL           string // empty disables NATS
	Subject       string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// Load loads configuration from an optional TOML file named by VOICE_API_CONFIG
// and environment variables. Environment variables take precedence over the
// file, the file over built-in defaults.
func Load() (*Config, error) {
	src, err := newSource(os.Getenv("VOICE_API_CONFIG"))
	if err != nil {
		return nil, err
	}

	speechEngine := src.getString("SPEECH_ENGINE", "speech.engine", SpeechEngineGTranslate)
	defaultSpeechURL := "https://translate.google.com"
	if speechEngine == SpeechEngineOpenAI {
		defaultSpeechURL = "http://localhost:8880/v1"
	}

	config := &Config{
		Server: ServerConfig{
			Host:           src.getString("VOICE_API_HOST", "server.host", "0.0.0.0"),
			Port:           src.getInt("VOICE_API_PORT", "server.port", 8000),
			ReadTimeout:    src.getDuration("VOICE_API_READ_TIMEOUT", "server.read_timeout", 5*time.Minute),
			WriteTimeout:   src.getDuration("VOICE_API_WRITE_TIMEOUT", "server.write_timeout", 0),
			MaxUploadBytes: int64(src.getInt("VOICE_API_MAX_UPLOAD_BYTES", "server.max_upload_bytes", 100<<20)),
		},
		Uploads: UploadsConfig{
			Backend: src.getString("UPLOADS_BACKEND", "uploads.backend", UploadBackendDir),
			BaseDir: src.getString("UPLOADS_BASE_DIR", "uploads.base_dir", ""),
		},
		Speech: SpeechConfig{
			Engine:        speechEngine,
			URL:           src.getString("SPEECH_URL", "speech.url", defaultSpeechURL),
			Timeout:       src.getDuration("SPEECH_TIMEOUT", "speech.timeout", 30*time.Second),
			MaxConcurrent: src.getInt("SPEECH_MAX_CONCURRENT", "speech.max_concurrent", 10),
			Voice:         src.getString("SPEECH_VOICE", "speech.voice", "af_bella"),
			Model:         src.getString("SPEECH_MODEL", "speech.model", "tts-1"),
			Speed:         src.getFloat32("SPEECH_SPEED", "speech.speed", 1.0),
		},
		Clone: CloneConfig{
			Engine:        src.getString("CLONE_ENGINE", "clone.engine", CloneEngineCoqui),
			Binary:        src.getString("CLONE_BINARY", "clone.binary", "tts"),
			Model:         src.getString("CLONE_MODEL", "clone.model", "tts_models/multilingual/multi-dataset/your_tts"),
			URL:           src.getString("CLONE_URL", "clone.url", "http://localhost:8020"),
			Timeout:       src.getDuration("CLONE_TIMEOUT", "clone.timeout", 0),
			MaxConcurrent: src.getInt("CLONE_MAX_CONCURRENT", "clone.max_concurrent", 1),
		},
		History: HistoryConfig{
			DBPath: src.getString("HISTORY_DB_PATH", "history.db_path", ""),
		},
		Logging: LoggingConfig{
			Level:  src.getString("LOG_LEVEL", "logging.level", "info"),
			Format: src.getString("LOG_FORMAT", "logging.format", "console"),
		},
		NATS: NATSConfig{
			URL:           src.getString("NATS_URL", "nats.url", ""),
			Subject:       src.getString("NATS_SUBJECT", "nats.subject", "voiceapi.synthesis.events"),
			MaxReconnect:  src.getInt("NATS_MAX_RECONNECT", "nats.max_reconnect", 10),
			ReconnectWait: src.getDuration("NATS_RECONNECT_WAIT", "nats.reconnect_wait", 2*time.Second),
		},
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.MaxUploadBytes < 0 {
		return fmt.Errorf("max upload bytes must not be negative: %d", c.Server.MaxUploadBytes)
	}

	switch c.Uploads.Backend {
	case UploadBackendDir:
	case UploadBackendNATS:
		if c.NATS.URL == "" {
			return fmt.Errorf("uploads backend %q requires NATS_URL", c.Uploads.Backend)
		}
	default:
		return fmt.Errorf("unknown uploads backend: %q", c.Uploads.Backend)
	}

	if c.Speech.Engine != SpeechEngineGTranslate && c.Speech.Engine != SpeechEngineOpenAI {
		return fmt.Errorf("unknown speech engine: %q", c.Speech.Engine)
	}

	if c.Speech.URL == "" {
		return fmt.Errorf("speech URL must be provided")
	}

	if c.Speech.MaxConcurrent <= 0 {
		return fmt.Errorf("speech max concurrent must be positive: %d", c.Speech.MaxConcurrent)
	}

	if c.Speech.Speed <= 0 {
		return fmt.Errorf("speech speed must be positive: %f", c.Speech.Speed)
	}

	switch c.Clone.Engine {
	case CloneEngineCoqui:
		if c.Clone.Binary == "" || c.Clone.Model == "" {
			return fmt.Errorf("clone engine %q requires a binary and a model", c.Clone.Engine)
		}
	case CloneEngineHTTP:
		if c.Clone.URL == "" {
			return fmt.Errorf("clone engine %q requires CLONE_URL", c.Clone.Engine)
		}
	default:
		return fmt.Errorf("unknown clone engine: %q", c.Clone.Engine)
	}

	if c.Clone.MaxConcurrent <= 0 {
		return fmt.Errorf("clone max concurrent must be positive: %d", c.Clone.MaxConcurrent)
	}

	return nil
}

// source resolves a setting from the environment first, then from the
// flattened config file ("section.key"), then the default
type source struct {
	file map[string]string
}

func newSource(path string) (*source, error) {
	src := &source{file: make(map[string]string)}
	if path == "" {
		return src, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var tree map[string]interface{}
	if err := toml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	flatten("", tree, src.file)
	return src, nil
}

func flatten(prefix string, tree map[string]interface{}, out map[string]string) {
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = fmt.Sprint(value)
	}
}

func (s *source) lookup(envKey, fileKey string) (string, bool) {
	if value := os.Getenv(envKey); value != "" {
		return value, true
	}
	value, ok := s.file[fileKey]
	return value, ok
}

// Helper functions for setting parsing; unparseable values fall back to the default
func (s *source) getString(envKey, fileKey, defaultValue string) string {
	if value, ok := s.lookup(envKey, fileKey); ok {
		return value
	}
	return defaultValue
}

func (s *source) getInt(envKey, fileKey string, defaultValue int) int {
	if value, ok := s.lookup(envKey, fileKey); ok {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (s *source) getFloat32(envKey, fileKey string, defaultValue float32) float32 {
	if value, ok := s.lookup(envKey, fileKey); ok {
		if floatValue, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatValue)
		}
	}
	return defaultValue
}

func (s *source) getDuration(envKey, fileKey string, defaultValue time.Duration) time.Duration {
	if value, ok := s.lookup(envKey, fileKey); ok {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

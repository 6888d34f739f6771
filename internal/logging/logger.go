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

package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

var (
	// Global logger instance
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json", "console"
}

// Initialize sets up the global logger based on environment variables
func Initialize() error {
	config := LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "console"),
	}

	return InitializeWithConfig(config)
}

// InitializeWithConfig sets up the global logger with provided configuration
func InitializeWithConfig(config LogConfig) error {
	var zapConfig zap.Config

	switch strings.ToLower(config.Format) {
	case "json":
		zapConfig = zap.NewProductionConfig()
	default:
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(strings.ToLower(config.Level))
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = level

	logger, err := zapConfig.Build(
		zap.AddCallerSkip(1), // Skip the wrapper functions
		zap.AddStacktrace(zap.ErrorLevel),
	)
	if err != nil {
		return err
	}

	Logger = logger
	Sugar = logger.Sugar()

	Sugar.Infof("🚀 Structured logging initialized (level: %s, format: %s)",
		config.Level, config.Format)

	return nil
}

// Sync flushes any buffered log entries
func Sync() {
	if Logger != nil {
		// Sync fails on stderr/stdout for some platforms; nothing useful to do about it.
		_ = Logger.Sync()
	}
}

// Close cleans up the logger
func Close() {
	Sync()
}

func logComponent(component, message string, base []zap.Field, fields []zap.Field) {
	if Logger == nil {
		return
	}

	allFields := append([]zap.Field{zap.String("component", component)}, base...)
	allFields = append(allFields, fields...)
	Logger.Info(message, allFields...)
}

// LogTTSOperation logs text-to-speech operations
func LogTTSOperation(operation string, fields ...zap.Field) {
	logComponent("tts", "TTS operation",
		[]zap.Field{zap.String("operation", operation)}, fields)
}

// LogUploadOperation logs writes and lookups against the upload store
func LogUploadOperation(area, operation string, fields ...zap.Field) {
	logComponent("uploads", "Upload operation",
		[]zap.Field{zap.String("area", area), zap.String("operation", operation)}, fields)
}

// LogDocumentOperation logs document text extraction
func LogDocumentOperation(operation string, fields ...zap.Field) {
	logComponent("document", "Document operation",
		[]zap.Field{zap.String("operation", operation)}, fields)
}

// LogNATSEvent logs NATS messaging events
func LogNATSEvent(subject, action string, fields ...zap.Field) {
	logComponent("messaging", "NATS event",
		[]zap.Field{zap.String("subject", subject), zap.String("action", action)}, fields)
}

// LogDatabaseOperation logs database operations
func LogDatabaseOperation(operation, table string, fields ...zap.Field) {
	logComponent("database", "Database operation",
		[]zap.Field{zap.String("operation", operation), zap.String("table", table)}, fields)
}

// LogHTTPRequest logs a completed HTTP request
func LogHTTPRequest(method, path string, status int, fields ...zap.Field) {
	logComponent("http", "HTTP request",
		[]zap.Field{zap.String("method", method), zap.String("path", path), zap.Int("status", status)}, fields)
}

// LogError logs errors with context
func LogError(err error, message string, fields ...zap.Field) {
	if Logger == nil {
		return
	}

	allFields := append([]zap.Field{zap.Error(err)}, fields...)
	Logger.Error(message, allFields...)
}

// LogWarn logs warnings with context
func LogWarn(message string, fields ...zap.Field) {
	if Logger == nil {
		return
	}

	Logger.Warn(message, fields...)
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

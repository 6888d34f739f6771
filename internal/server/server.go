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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/loqalabs/loqa-voice-api/internal/api"
	"github.com/loqalabs/loqa-voice-api/internal/config"
	"github.com/loqalabs/loqa-voice-api/internal/logging"
	"github.com/loqalabs/loqa-voice-api/internal/messaging"
	"github.com/loqalabs/loqa-voice-api/internal/speech"
	"github.com/loqalabs/loqa-voice-api/internal/storage"
	"github.com/loqalabs/loqa-voice-api/internal/uploads"
)

// shutdownTimeout bounds how long in-flight requests may take to finish
const shutdownTimeout = 30 * time.Second

// Components are the long lived dependencies of the server. Database and
// NATS are optional.
type Components struct {
	Store       *uploads.Store
	Synthesizer speech.Synthesizer
	Cloner      speech.Cloner
	Database    *storage.Database
	NATS        *messaging.NATSService
}

// Server is the voice API HTTP server. It owns its components and releases
// them on Stop.
type Server struct {
	cfg        *config.Config
	mux        *http.ServeMux
	server     *http.Server
	components Components
	history    *storage.SynthesisEventsStore
}

// New creates a server over already constructed components
func New(cfg *config.Config, components Components) *Server {
	mux := http.NewServeMux()

	s := &Server{
		cfg:        cfg,
		mux:        mux,
		components: components,
	}

	if components.Database != nil {
		s.history = storage.NewSynthesisEventsStore(components.Database)
	}

	s.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      api.WithRequestLogging(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.routes()
	return s
}

// routes sets up HTTP routing
func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)

	var recorder api.EventRecorder
	if s.history != nil || s.components.NATS != nil {
		recorder = &eventSink{history: s.history, publisher: s.components.NATS}
	}

	api.NewHandler(api.Options{
		Store:          s.components.Store,
		Synthesizer:    s.components.Synthesizer,
		Cloner:         s.components.Cloner,
		Recorder:       recorder,
		MaxUploadBytes: s.cfg.Server.MaxUploadBytes,
	}).Register(s.mux)

	if s.history != nil {
		api.NewSynthesisEventsHandler(s.history).Register(s.mux)
	}

	if logging.Sugar != nil {
		logging.Sugar.Infow("🌐 HTTP routes configured",
			"synthesis_endpoints", []string{"/tts", "/clone-voice", "/pdf-tts", "/pdf-clone-voice"},
			"upload_endpoints", []string{"/upload-voice", "/upload-pdf"},
			"history_enabled", s.history != nil,
		)
	}
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves HTTP until Stop is called
func (s *Server) Start() error {
	if logging.Sugar != nil {
		logging.Sugar.Infow("🚀 Voice API starting",
			"addr", s.server.Addr,
			"speech_engine", s.components.Synthesizer.Engine(),
			"clone_engine", s.components.Cloner.Engine(),
			"uploads_backend", s.cfg.Uploads.Backend,
		)
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop drains HTTP requests, then destroys both upload areas and closes
// the remaining components
func (s *Server) Stop() error {
	if logging.Sugar != nil {
		logging.Sugar.Infow("🛑 Shutting down Voice API")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown failed: %w", err))
	}

	errs = append(errs, closeComponents(shutdownCtx, s.components)...)

	if err := errors.Join(errs...); err != nil {
		return err
	}

	if logging.Sugar != nil {
		logging.Sugar.Infow("✅ Voice API shut down successfully")
	}
	return nil
}

// closeComponents releases components in dependency order: the upload store
// may live in NATS, so NATS closes last
func closeComponents(ctx context.Context, c Components) []error {
	var errs []error

	if c.Store != nil {
		if err := c.Store.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Synthesizer != nil {
		if err := c.Synthesizer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close synthesizer: %w", err))
		}
	}
	if c.Cloner != nil {
		if err := c.Cloner.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close cloner: %w", err))
		}
	}
	if c.Database != nil {
		if err := c.Database.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	if c.NATS != nil {
		c.NATS.Close()
	}

	return errs
}

// handleHealth reports liveness and the configured backends
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	history := "disabled"
	if db := s.components.Database; db != nil {
		history = "file"
		if db.InMemory() {
			history = "memory"
		}
	}

	health := map[string]interface{}{
		"status":          "ok",
		"timestamp":       time.Now(),
		"speech_engine":   s.components.Synthesizer.Engine(),
		"clone_engine":    s.components.Cloner.Engine(),
		"uploads_backend": s.cfg.Uploads.Backend,
		"history":         history,
	}
	if s.components.NATS != nil {
		stats := s.components.NATS.GetStats()
		health["nats_connected"] = s.components.NATS.IsConnected()
		health["nats_published"] = stats.OutMsgs
		health["nats_reconnects"] = stats.Reconnects
	}

	w.Header().Set("Content-Type", "application/json")
	if err := writeJSON(w, health); err != nil {
		logging.LogWarn("Failed to write health response")
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) error {
	return json.NewEncoder(w).Encode(data)
}

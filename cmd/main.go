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

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/loqalabs/loqa-voice-api/internal/config"
	"github.com/loqalabs/loqa-voice-api/internal/logging"
	"github.com/loqalabs/loqa-voice-api/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	if err := logging.InitializeWithConfig(logging.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	srv, err := server.Build(cfg)
	if err != nil {
		logging.LogError(err, "Failed to build server")
		logging.Close()
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Sugar.Infow("Received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logging.LogError(err, "Server stopped unexpectedly")
		}
	}

	// Upload areas are destroyed here, whichever way the server stopped
	if err := srv.Stop(); err != nil {
		logging.LogError(err, "Shutdown incomplete")
		logging.Close()
		os.Exit(1)
	}
}

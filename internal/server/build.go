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
	"errors"
	"fmt"

	"github.com/loqalabs/loqa-voice-api/internal/config"
	"github.com/loqalabs/loqa-voice-api/internal/logging"
	"github.com/loqalabs/loqa-voice-api/internal/messaging"
	"github.com/loqalabs/loqa-voice-api/internal/speech"
	"github.com/loqalabs/loqa-voice-api/internal/storage"
	"github.com/loqalabs/loqa-voice-api/internal/uploads"
	"go.uber.org/zap"
)

// Build constructs every component selected by cfg and the server over them.
// Components built before a failure are released again.
func Build(cfg *config.Config) (srv *Server, err error) {
	var components Components
	defer func() {
		if err != nil {
			if cleanupErr := errors.Join(closeComponents(context.Background(), components)...); cleanupErr != nil {
				logging.LogError(cleanupErr, "Failed to release components after startup error")
			}
		}
	}()

	if cfg.NATS.URL != "" {
		natsService, err := messaging.NewNATSService(cfg.NATS)
		if err != nil {
			return nil, err
		}
		if err := natsService.Connect(cfg.NATS); err != nil {
			return nil, err
		}
		components.NATS = natsService
	}

	components.Store, err = buildStore(cfg.Uploads, components.NATS)
	if err != nil {
		return nil, err
	}

	components.Synthesizer, err = speech.NewSynthesizer(cfg.Speech)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	components.Cloner, err = speech.NewCloner(cfg.Clone)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloner: %w", err)
	}

	components.Database, err = storage.NewDatabase(storage.DatabaseConfig{Path: cfg.History.DBPath})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	logging.LogTTSOperation("engines_configured",
		zap.String("speech_engine", components.Synthesizer.Engine()),
		zap.String("clone_engine", components.Cloner.Engine()),
		zap.Int("clone_max_concurrent", cfg.Clone.MaxConcurrent),
	)

	return New(cfg, components), nil
}

func buildStore(cfg config.UploadsConfig, natsService *messaging.NATSService) (*uploads.Store, error) {
	switch cfg.Backend {
	case config.UploadBackendDir:
		store, err := uploads.NewDirStore(cfg.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create upload directories: %w", err)
		}
		return store, nil

	case config.UploadBackendNATS:
		if natsService == nil {
			return nil, fmt.Errorf("uploads backend %q requires NATS_URL", cfg.Backend)
		}
		js, err := natsService.JetStream()
		if err != nil {
			return nil, err
		}
		store, err := uploads.NewNATSStore(js)
		if err != nil {
			return nil, fmt.Errorf("failed to create upload buckets: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown uploads backend: %q", cfg.Backend)
	}
}

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

	"github.com/loqalabs/loqa-voice-api/internal/events"
	"github.com/loqalabs/loqa-voice-api/internal/logging"
	"github.com/loqalabs/loqa-voice-api/internal/messaging"
	"github.com/loqalabs/loqa-voice-api/internal/storage"
	"go.uber.org/zap"
)

// eventSink stores synthesis events in the history database and fans them
// out over NATS. Failures are logged and never fail the request.
type eventSink struct {
	history   *storage.SynthesisEventsStore
	publisher *messaging.NATSService
}

// Record implements api.EventRecorder
func (s *eventSink) Record(ctx context.Context, event *events.SynthesisEvent) {
	if s.history != nil {
		if err := s.history.Insert(ctx, event); err != nil {
			logging.LogError(err, "Failed to store synthesis event", zap.String("uuid", event.UUID))
		}
	}

	if s.publisher != nil && s.publisher.IsConnected() {
		if err := s.publisher.PublishSynthesisEvent(event); err != nil {
			logging.LogError(err, "Failed to publish synthesis event", zap.String("uuid", event.UUID))
		}
	}
}

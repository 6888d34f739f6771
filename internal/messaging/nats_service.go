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

package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/loqalabs/loqa-voice-api/internal/config"
	"github.com/loqalabs/loqa-voice-api/internal/events"
	"github.com/loqalabs/loqa-voice-api/internal/logging"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubjectSynthesisEvents is the subject synthesis events are published on
const DefaultSubjectSynthesisEvents = "voiceapi.synthesis.events"

// NATSService publishes synthesis events and provides JetStream access for
// object store backed uploads
type NATSService struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	url     string
	subject string
}

// NewNATSService creates a new NATS service instance; call Connect before use
func NewNATSService(cfg config.NATSConfig) (*NATSService, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("NATS URL cannot be empty")
	}

	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubjectSynthesisEvents
	}

	return &NATSService{
		url:     cfg.URL,
		subject: subject,
	}, nil
}

// Connect establishes connection to NATS server
func (ns *NATSService) Connect(cfg config.NATSConfig) error {
	logging.LogNATSEvent(ns.url, "connecting")

	opts := []nats.Option{
		nats.Name("loqa-voice-api"),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.LogWarn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.LogNATSEvent(nc.ConnectedUrl(), "reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logging.LogNATSEvent(ns.url, "closed")
		}),
	}

	conn, err := nats.Connect(ns.url, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ns.conn = conn
	ns.js = js
	logging.LogNATSEvent(conn.ConnectedUrl(), "connected")
	return nil
}

// Subject returns the subject synthesis events are published on
func (ns *NATSService) Subject() string {
	return ns.subject
}

// JetStream returns the JetStream context of the connection
func (ns *NATSService) JetStream() (nats.JetStreamContext, error) {
	if ns.js == nil {
		return nil, fmt.Errorf("NATS connection not established")
	}
	return ns.js, nil
}

// PublishSynthesisEvent publishes a synthesis event as JSON
func (ns *NATSService) PublishSynthesisEvent(event *events.SynthesisEvent) error {
	if ns.conn == nil {
		return fmt.Errorf("NATS connection not established")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal synthesis event: %w", err)
	}

	if err := ns.conn.Publish(ns.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", ns.subject, err)
	}

	logging.LogNATSEvent(ns.subject, "published",
		zap.String("uuid", event.UUID),
		zap.String("endpoint", event.Endpoint),
		zap.Bool("success", event.Success),
	)
	return nil
}

// Flush waits until published messages reached the server
func (ns *NATSService) Flush() error {
	if ns.conn == nil {
		return nil
	}
	return ns.conn.Flush()
}

// Close closes the NATS connection
func (ns *NATSService) Close() {
	if ns.conn != nil {
		ns.conn.Close()
		ns.conn = nil
		ns.js = nil
	}
}

// IsConnected returns true if connected to NATS
func (ns *NATSService) IsConnected() bool {
	return ns.conn != nil && ns.conn.IsConnected()
}

// GetStats returns connection statistics
func (ns *NATSService) GetStats() nats.Statistics {
	if ns.conn == nil {
		return nats.Statistics{}
	}
	return ns.conn.Stats()
}

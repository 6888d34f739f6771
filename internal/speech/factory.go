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
	"fmt"

	"github.com/loqalabs/loqa-voice-api/internal/config"
)

// NewSynthesizer builds the generic synthesizer selected by cfg.Engine
func NewSynthesizer(cfg config.SpeechConfig) (Synthesizer, error) {
	switch cfg.Engine {
	case config.SpeechEngineGTranslate:
		synthesizer, err := NewGoogleTranslateTTS(cfg)
		if err != nil {
			return nil, err
		}
		return synthesizer, nil
	case config.SpeechEngineOpenAI:
		synthesizer, err := NewOpenAITTSClient(cfg)
		if err != nil {
			return nil, err
		}
		return synthesizer, nil
	default:
		return nil, fmt.Errorf("unknown speech engine: %q", cfg.Engine)
	}
}

// NewCloner builds the voice cloner selected by cfg.Engine
func NewCloner(cfg config.CloneConfig) (Cloner, error) {
	switch cfg.Engine {
	case config.CloneEngineCoqui:
		return NewCoquiCloner(cfg), nil
	case config.CloneEngineHTTP:
		cloner, err := NewHTTPCloner(cfg)
		if err != nil {
			return nil, err
		}
		return cloner, nil
	default:
		return nil, fmt.Errorf("unknown clone engine: %q", cfg.Engine)
	}
}

/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logger

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// OTelExporter receives every encoded record alongside the primary output.
type OTelExporter interface {
	io.Writer
	Shutdown(ctx context.Context) error
}

// OTelFactory builds the OTLP log exporter for a logging configuration with
// OTel enabled.
type OTelFactory func(ctx context.Context, cfg *Config) (OTelExporter, error)

func defaultOTelFactory(ctx context.Context, cfg *Config) (OTelExporter, error) {
	w, err := NewOTELWriter(ctx, cfg.OTel, WithRecordTimeFormat(cfg.TimeFormat))
	if err != nil {
		return nil, err
	}

	return w, nil
}

// sink is the physical destination of one logger configuration. Once retired,
// writes that were formatted against the old configuration are forwarded to
// the successor instead of reaching a closed exporter.
type sink struct {
	mu   sync.RWMutex
	out  zerolog.LevelWriter
	otel OTelExporter
	next *sink
}

func (s *sink) Write(p []byte) (int, error) {
	s.mu.RLock()

	if s.next != nil {
		next := s.next
		s.mu.RUnlock()

		return next.Write(p)
	}

	defer s.mu.RUnlock()

	return s.out.Write(p)
}

func (s *sink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	s.mu.RLock()

	if s.next != nil {
		next := s.next
		s.mu.RUnlock()

		return next.WriteLevel(level, p)
	}

	defer s.mu.RUnlock()

	return s.out.WriteLevel(level, p)
}

// retire waits for in-flight writes, then points the sink at next.
func (s *sink) retire(next *sink) {
	s.mu.Lock()
	s.next = next
	s.mu.Unlock()
}

func (s *sink) close(ctx context.Context) error {
	if s.otel == nil {
		return nil
	}

	return s.otel.Shutdown(ctx)
}

func buildSink(ctx context.Context, cfg *Config, stdout, stderr io.Writer, factory OTelFactory) (*sink, error) {
	base := stdout
	if cfg.Output == OutputStderr {
		base = stderr
	}

	var primary io.Writer = base

	if cfg.Format == FormatConsole {
		primary = zerolog.ConsoleWriter{
			Out:     base,
			NoColor: !isTerminal(base),
		}
	}

	s := &sink{}

	if cfg.OTel.Enabled {
		exporter, err := factory(ctx, cfg)
		if err != nil {
			return nil, err
		}

		s.otel = exporter
		s.out = zerolog.MultiLevelWriter(primary, exporter)

		return s, nil
	}

	s.out = zerolog.MultiLevelWriter(primary)

	return s, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

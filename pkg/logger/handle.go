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

// Package logger provides JSON structured logging using zerolog, with a
// Handle that applies partial configuration changes to the running process.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const sinkShutdownTimeout = 10 * time.Second

// Handle owns the live logging configuration. Updates are applied one at a
// time; readers always see a whole configuration, never a partial merge.
type Handle struct {
	mu    sync.Mutex
	state atomic.Pointer[liveState]

	known       map[string]struct{}
	stdout      io.Writer
	stderr      io.Writer
	otelFactory OTelFactory

	listenersMu sync.RWMutex
	listeners   []func(prev, next Config)
}

type HandleOption func(*Handle)

// WithOutputs replaces the process stdout and stderr as sink destinations.
func WithOutputs(stdout, stderr io.Writer) HandleOption {
	return func(h *Handle) {
		h.stdout = stdout
		h.stderr = stderr
	}
}

// WithComponents registers the component names that may carry a level
// override. Without names any component name is accepted.
func WithComponents(names ...string) HandleOption {
	return func(h *Handle) {
		if len(names) == 0 {
			return
		}

		if h.known == nil {
			h.known = make(map[string]struct{}, len(names))
		}

		for _, name := range names {
			h.known[name] = struct{}{}
		}
	}
}

func WithOTelFactory(factory OTelFactory) HandleOption {
	return func(h *Handle) {
		h.otelFactory = factory
	}
}

// NewHandle validates cfg and builds the first live state. A nil cfg means
// DefaultConfig().
func NewHandle(ctx context.Context, cfg *Config, opts ...HandleOption) (*Handle, error) {
	h := &Handle{
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		otelFactory: defaultOTelFactory,
	}

	for _, opt := range opts {
		opt(h)
	}

	if cfg == nil {
		cfg = DefaultConfig()
	}

	initial := cfg.Clone()
	if err := initial.Validate(h.known); err != nil {
		return nil, err
	}

	s, err := buildSink(ctx, &initial, h.stdout, h.stderr, h.otelFactory)
	if err != nil {
		return nil, fmt.Errorf("failed to build log sink: %w", err)
	}

	h.state.Store(newLiveState(initial, s, h.known))

	return h, nil
}

// GetConfig returns a copy of the configuration currently in effect.
func (h *Handle) GetConfig() Config {
	st := h.state.Load()

	return st.cfg.Clone()
}

// Components lists the registered component names in order.
func (h *Handle) Components() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.known))
	for name := range h.known {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// OnChange registers fn to run after every committed update. Listeners run in
// commit order and must not call UpdateConfig or WithComponent.
func (h *Handle) OnChange(fn func(prev, next Config)) {
	h.listenersMu.Lock()
	h.listeners = append(h.listeners, fn)
	h.listenersMu.Unlock()
}

// UpdateConfig merges diff into the live configuration. A *ValidationError
// leaves the configuration untouched.
func (h *Handle) UpdateConfig(ctx context.Context, diff ConfigDiff) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.state.Load()
	candidate := Merge(prev.cfg, diff)

	if err := candidate.Validate(h.known); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s := prev.sink
	rebuild := sinkChanged(&prev.cfg, &candidate)

	if rebuild {
		var err error

		s, err = buildSink(ctx, &candidate, h.stdout, h.stderr, h.otelFactory)
		if err != nil {
			return fmt.Errorf("failed to build log sink: %w", err)
		}
	}

	next := newLiveState(candidate, s, h.known)
	h.state.Store(next)

	if rebuild {
		prev.sink.retire(s)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkShutdownTimeout)
		if err := prev.sink.close(shutdownCtx); err != nil {
			next.root.Warn().Err(err).Msg("Failed to shut down previous log exporter")
		}

		cancel()
	}

	h.listenersMu.RLock()
	listeners := append([]func(prev, next Config){}, h.listeners...)
	h.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(prev.cfg.Clone(), candidate.Clone())
	}

	return nil
}

// Close flushes and stops the OTel exporter of the live sink, if any.
func (h *Handle) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.state.Load().sink.close(ctx)
}

// Logger returns a Logger that always writes with the live configuration.
func (h *Handle) Logger() Logger {
	return &handleLogger{h: h}
}

// WithComponent returns a live Logger whose records carry the component field
// and honour that component's level override. The component is registered, so
// its level can be changed through UpdateConfig.
func (h *Handle) WithComponent(component string) Logger {
	h.register(component)

	return &handleLogger{h: h, component: component}
}

func (h *Handle) register(component string) {
	if component == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.known == nil {
		return
	}

	if _, ok := h.known[component]; ok {
		return
	}

	known := make(map[string]struct{}, len(h.known)+1)
	for name := range h.known {
		known[name] = struct{}{}
	}

	known[component] = struct{}{}
	h.known = known

	st := h.state.Load()
	h.state.Store(newLiveState(st.cfg, st.sink, known))
}

// sinkChanged reports whether next needs a new sink. The OTel writer decodes
// timestamps, so a time format change rebuilds it too.
func sinkChanged(prev, next *Config) bool {
	if prev.Output != next.Output || prev.Format != next.Format || !prev.OTel.equal(&next.OTel) {
		return true
	}

	return next.OTel.Enabled && prev.TimeFormat != next.TimeFormat
}

// liveState is immutable once published.
type liveState struct {
	cfg        Config
	sink       *sink
	root       zerolog.Logger
	components map[string]zerolog.Logger
}

func newLiveState(cfg Config, s *sink, known map[string]struct{}) *liveState {
	base := zerolog.New(s).Hook(timestampHook{format: cfg.TimeFormat})
	rootLevel := cfg.rootLevel()

	st := &liveState{
		cfg:        cfg,
		sink:       s,
		root:       base.Level(rootLevel),
		components: make(map[string]zerolog.Logger, len(known)+len(cfg.Components)),
	}

	add := func(name string) {
		level := rootLevel

		if override, ok := cfg.Components[name]; ok {
			if parsed, err := parseLevel(override); err == nil {
				level = parsed
			}
		}

		st.components[name] = base.Level(level).With().Str("component", name).Logger()
	}

	for name := range known {
		add(name)
	}

	for name := range cfg.Components {
		add(name)
	}

	return st
}

func (s *liveState) loggerFor(component string) zerolog.Logger {
	if component == "" {
		return s.root
	}

	if l, ok := s.components[component]; ok {
		return l
	}

	return s.root.With().Str("component", component).Logger()
}

type timestampHook struct {
	format string
}

func (h timestampHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	now := time.Now()

	switch h.format {
	case "":
		e.Str(zerolog.TimestampFieldName, now.Format(time.RFC3339))
	case TimeFormatUnix:
		e.Int64(zerolog.TimestampFieldName, now.Unix())
	case TimeFormatUnixMs:
		e.Int64(zerolog.TimestampFieldName, now.UnixMilli())
	default:
		e.Str(zerolog.TimestampFieldName, now.Format(h.format))
	}
}

// handleLogger resolves the live state on every call, so each record is
// formatted against exactly one configuration.
type handleLogger struct {
	h         *Handle
	component string
}

func (l *handleLogger) current() zerolog.Logger {
	return l.h.state.Load().loggerFor(l.component)
}

func (l *handleLogger) Trace() *zerolog.Event { z := l.current(); return z.Trace() }
func (l *handleLogger) Debug() *zerolog.Event { z := l.current(); return z.Debug() }
func (l *handleLogger) Info() *zerolog.Event  { z := l.current(); return z.Info() }
func (l *handleLogger) Warn() *zerolog.Event  { z := l.current(); return z.Warn() }
func (l *handleLogger) Error() *zerolog.Event { z := l.current(); return z.Error() }
func (l *handleLogger) Fatal() *zerolog.Event { z := l.current(); return z.Fatal() }
func (l *handleLogger) Panic() *zerolog.Event { z := l.current(); return z.Panic() }
func (l *handleLogger) With() zerolog.Context { return l.current().With() }

// WithComponent returns a logger bound to the configuration in effect now.
func (l *handleLogger) WithComponent(component string) zerolog.Logger {
	return l.h.state.Load().loggerFor(component)
}

func (l *handleLogger) WithFields(fields map[string]interface{}) zerolog.Logger {
	ctx := l.current().With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}

	return ctx.Logger()
}

// SetLevel changes the root level, or the component override for a
// component logger.
func (l *handleLogger) SetLevel(level zerolog.Level) {
	name := level.String()

	var diff ConfigDiff

	if l.component == "" {
		debug := false
		diff.Level = &name
		diff.Debug = &debug
	} else {
		diff.Components = map[string]*string{l.component: &name}
	}

	l.apply(diff)
}

func (l *handleLogger) SetDebug(debug bool) {
	var diff ConfigDiff

	switch {
	case l.component == "":
		diff.Debug = &debug
	case debug:
		level := zerolog.DebugLevel.String()
		diff.Components = map[string]*string{l.component: &level}
	default:
		diff.Components = map[string]*string{l.component: nil}
	}

	l.apply(diff)
}

func (l *handleLogger) apply(diff ConfigDiff) {
	if err := l.h.UpdateConfig(context.Background(), diff); err != nil {
		l.Warn().Err(err).Msg("Failed to apply log level change")
	}
}

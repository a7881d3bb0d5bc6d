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


// Package api serves the admin control plane over HTTP: write lock,
// telemetry, metrics, logger configuration, stack traces and liveness probes.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/carverauto/serviceradar-admin/pkg/config"
	srHttp "github.com/carverauto/serviceradar-admin/pkg/http"
	"github.com/carverauto/serviceradar-admin/pkg/locks"
	"github.com/carverauto/serviceradar-admin/pkg/logger"
	"github.com/carverauto/serviceradar-admin/pkg/models"
	"github.com/carverauto/serviceradar-admin/pkg/telemetry"
)

var (
	errTelemetryDisabled = errors.New("telemetry is disabled")
	errLoggerUnavailable = errors.New("logger configuration is not available")
)

const (
	healthzBody     = "healthz check passed"
	maxBodyBytes    = 1 << 20
	instrumentation = "serviceradar-admin"
)

// probePaths are served without an API key.
var probePaths = []string{"/healthz", "/livez", "/readyz"}

// APIServer dispatches admin requests to the lock, telemetry and logger
// controllers it was built with.
type APIServer struct {
	router       *mux.Router
	handler      http.Handler
	locks        LockController
	telemetry    TelemetryProvider
	loggerCtl    LoggerController
	requestStats *telemetry.RequestStats
	corsConfig   models.CORSConfig
	apiKey       string
	logger       logger.Logger
}

// NewAPIServer creates a new API server instance with the given options. A
// server built without WithLocks owns a fresh unlocked controller.
func NewAPIServer(options ...func(server *APIServer)) *APIServer {
	s := &APIServer{
		router: mux.NewRouter(),
		logger: logger.NewTestLogger(),
	}

	for _, o := range options {
		o(s)
	}

	if s.locks == nil {
		s.locks = locks.NewController(s.logger)
	}

	s.setupRoutes()
	s.handler = s.buildHandler()

	return s
}

// WithLocks sets the write lock controller.
func WithLocks(l LockController) func(server *APIServer) {
	return func(server *APIServer) {
		server.locks = l
	}
}

// WithSnapshotter sets the telemetry source. Without one, /telemetry and
// /metrics answer with a service error.
func WithSnapshotter(t TelemetryProvider) func(server *APIServer) {
	return func(server *APIServer) {
		server.telemetry = t
	}
}

// WithLoggerHandle exposes h on /logger and logs every applied change.
func WithLoggerHandle(h *logger.Handle) func(server *APIServer) {
	return func(server *APIServer) {
		server.loggerCtl = h
		h.OnChange(server.logConfigChange)
	}
}

// WithLoggerController exposes an arbitrary logger controller on /logger.
func WithLoggerController(c LoggerController) func(server *APIServer) {
	return func(server *APIServer) {
		server.loggerCtl = c
	}
}

// WithRequestStats records every routed request.
func WithRequestStats(stats *telemetry.RequestStats) func(server *APIServer) {
	return func(server *APIServer) {
		server.requestStats = stats
	}
}

func WithLogger(log logger.Logger) func(server *APIServer) {
	return func(server *APIServer) {
		server.logger = log
	}
}

// WithAPIKey requires key on every route except the liveness probes.
func WithAPIKey(key string) func(server *APIServer) {
	return func(server *APIServer) {
		server.apiKey = key
	}
}

func WithCORS(cors models.CORSConfig) func(server *APIServer) {
	return func(server *APIServer) {
		server.corsConfig = cors
	}
}

func (s *APIServer) setupRoutes() {
	if s.requestStats != nil {
		s.router.Use(srHttp.RequestRecorder(s.requestStats))
	}

	s.router.Use(srHttp.APIKeyMiddlewareWithOptions(srHttp.APIKeyOptions{
		APIKey:          s.apiKey,
		ExcludePaths:    probePaths,
		LogUnauthorized: true,
		Logger:          s.logger,
	}))

	s.router.HandleFunc("/telemetry", s.getTelemetry).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.getMetrics).Methods(http.MethodGet)
	s.router.HandleFunc("/locks", s.getLocks).Methods(http.MethodGet)
	s.router.HandleFunc("/locks", s.putLocks).Methods(http.MethodPost, http.MethodPut)
	s.router.HandleFunc("/stacktrace", s.getStackTrace).Methods(http.MethodGet)
	s.router.HandleFunc("/logger", s.getLoggerConfig).Methods(http.MethodGet)
	s.router.HandleFunc("/logger", s.putLoggerConfig).Methods(http.MethodPost, http.MethodPut)

	for _, path := range probePaths {
		s.router.HandleFunc(path, healthz).Methods(http.MethodGet, http.MethodHead)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeEnvelope(w, http.StatusNotFound, envelope{
			Status: failureStatus{Error: "no route for " + r.Method + " " + r.URL.Path},
		})
	})
}

func (s *APIServer) buildHandler() http.Handler {
	var h http.Handler = s.router

	h = srHttp.RequestLogger(s.logger)(h)
	h = srHttp.CommonMiddleware(h, s.corsConfig, s.logger)

	return otelhttp.NewHandler(h, instrumentation, otelhttp.WithSpanNameFormatter(s.spanName))
}

// spanName names server spans after the route template the router selects,
// the same key RequestRecorder uses.
func (s *APIServer) spanName(_ string, r *http.Request) string {
	var match mux.RouteMatch

	if s.router.Match(r, &match) && match.Route != nil {
		if tpl, err := match.Route.GetPathTemplate(); err == nil {
			return r.Method + " " + tpl
		}
	}

	return r.Method + " unmatched"
}

// Handler returns the fully wrapped HTTP handler.
func (s *APIServer) Handler() http.Handler {
	return s.handler
}

// NewHTTPServer builds an http.Server for cfg serving this API.
func (s *APIServer) NewHTTPServer(cfg *models.AdminConfig) *http.Server {
	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.handler,
		ReadTimeout:       time.Duration(cfg.ReadTimeout),
		ReadHeaderTimeout: time.Duration(cfg.ReadTimeout),
		WriteTimeout:      time.Duration(cfg.WriteTimeout),
		IdleTimeout:       time.Duration(cfg.IdleTimeout),
	}
}

var reloadTriggers = map[string]bool{"level": true, "sink": true, "format": true}

func (s *APIServer) logConfigChange(prev, next logger.Config) {
	changed := config.FieldsChangedByTag(prev, next, "reload", reloadTriggers)
	if len(changed) == 0 {
		return
	}

	s.logger.Info().
		Strs("fields", changed).
		Str("level", next.Level).
		Str("output", next.Output).
		Str("format", next.Format).
		Msg("Logger configuration updated")
}

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

// Package http holds the middleware shared by the admin HTTP surface.
package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/carverauto/serviceradar-admin/pkg/logger"
	"github.com/carverauto/serviceradar-admin/pkg/models"
)

const (
	RequestIDHeader = "X-Request-ID"
	APIKeyHeader    = "X-API-Key"
)

type requestIDKey struct{}

// RequestIDFromContext returns the ID assigned by RequestLogger, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)

	return id
}

// CommonMiddleware applies CORS headers and answers preflight requests.
// Origins not listed in the config get no Access-Control-Allow-Origin header;
// "*" allows any origin.
func CommonMiddleware(next http.Handler, cors models.CORSConfig, log logger.Logger) http.Handler {
	allowed := make(map[string]struct{}, len(cors.AllowedOrigins))
	for _, origin := range cors.AllowedOrigins {
		allowed[origin] = struct{}{}
	}

	_, allowAny := allowed["*"]

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" {
			if _, ok := allowed[origin]; ok || allowAny {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")

				if cors.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			} else {
				log.Debug().Str("origin", origin).Str("path", r.URL.Path).Msg("CORS origin not allowed")
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type APIKeyOptions struct {
	APIKey string
	// ExcludePaths are matched by exact path or, when ending in "/", by prefix.
	ExcludePaths    []string
	LogUnauthorized bool
	Logger          logger.Logger
}

// APIKeyMiddlewareWithOptions requires the configured key in the X-API-Key
// header or the api_key query parameter. An empty APIKey disables the check.
func APIKeyMiddlewareWithOptions(opts APIKeyOptions) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.APIKey == "" || isExcluded(r.URL.Path, opts.ExcludePaths) {
				next.ServeHTTP(w, r)
				return
			}

			requestKey := r.Header.Get(APIKeyHeader)
			if requestKey == "" {
				requestKey = r.URL.Query().Get("api_key")
			}

			if subtle.ConstantTimeCompare([]byte(requestKey), []byte(opts.APIKey)) != 1 {
				if opts.LogUnauthorized && opts.Logger != nil {
					opts.Logger.Warn().
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Str("remote_addr", r.RemoteAddr).
						Msg("Unauthorized API access attempt")
				}

				writeUnauthorized(w)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isExcluded(path string, excluded []string) bool {
	for _, p := range excluded {
		if path == p || (strings.HasSuffix(p, "/") && strings.HasPrefix(path, p)) {
			return true
		}
	}

	return false
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	_ = json.NewEncoder(w).Encode(models.ErrorResponse{
		Message: "Unauthorized",
		Status:  http.StatusUnauthorized,
	})
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}

	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}

	n, err := r.ResponseWriter.Write(b)
	r.bytes += n

	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}

	return r.status
}

// RequestLogger assigns a request ID, echoes it in X-Request-ID and writes
// one access log record per request. An inbound X-Request-ID is kept.
func RequestLogger(log logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.New().String()
			}

			w.Header().Set(RequestIDHeader, id)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))

			status := rec.code()

			event := log.Debug()
			if status >= http.StatusInternalServerError {
				event = log.Warn()
			}

			event.
				Str("request_id", id).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Int("status", status).
				Int("bytes", rec.bytes).
				Dur("duration", time.Since(start)).
				Msg("Handled admin request")
		})
	}
}

// RequestObserver receives one observation per handled request.
type RequestObserver interface {
	Observe(ctx context.Context, method, route string, status int, elapsed time.Duration)
}

// RequestRecorder reports every request to obs, keyed by the matched mux
// route template so path parameters do not explode the key space.
func RequestRecorder(obs RequestObserver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			obs.Observe(r.Context(), r.Method, routeTemplate(r), rec.code(), time.Since(start))
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}

	return "unmatched"
}


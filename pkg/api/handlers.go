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


package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/carverauto/serviceradar-admin/pkg/logger"
	"github.com/carverauto/serviceradar-admin/pkg/stacktrace"
	"github.com/carverauto/serviceradar-admin/pkg/telemetry"
)

// getTelemetry handles GET /telemetry?anonymize=&details_level=.
func (s *APIServer) getTelemetry(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	anonymize, err := queryBool(r, "anonymize", false)
	if err != nil {
		s.writeFailure(w, start, err)
		return
	}

	detailsLevel, err := queryUint(r, "details_level", 0)
	if err != nil {
		s.writeFailure(w, start, err)
		return
	}

	if s.telemetry == nil {
		s.writeFailure(w, start, &telemetry.ServiceError{Cause: errTelemetryDisabled})
		return
	}

	data, err := s.telemetry.Telemetry(r.Context(), anonymize, detailsLevel)
	if err != nil {
		s.writeFailure(w, start, err)
		return
	}

	s.writeResult(w, start, data)
}

// getMetrics handles GET /metrics?anonymize=. The body is plain text; only
// failures use the JSON envelope.
func (s *APIServer) getMetrics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	anonymize, err := queryBool(r, "anonymize", false)
	if err != nil {
		s.writeFailure(w, start, err)
		return
	}

	if s.telemetry == nil {
		s.writeFailure(w, start, &telemetry.ServiceError{Cause: errTelemetryDisabled})
		return
	}

	text, err := s.telemetry.Metrics(r.Context(), anonymize)
	if err != nil {
		s.writeFailure(w, start, err)
		return
	}

	w.Header().Set("Content-Type", telemetry.MetricsContentType)
	w.WriteHeader(http.StatusOK)

	if _, err := io.WriteString(w, text); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write metrics response")
	}
}

func (s *APIServer) getLocks(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()

	s.writeResult(w, start, s.locks.Get())
}

// putLocks swaps in the requested lock state and returns the previous one.
func (s *APIServer) putLocks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req lockRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			s.writeFailure(w, start, badRequest("request body is empty"))
			return
		}

		s.writeFailure(w, start, badRequest("invalid lock state: %v", err))

		return
	}

	if req.Write == nil {
		s.writeFailure(w, start, badRequest("invalid lock state: write is required"))
		return
	}

	s.writeResult(w, start, s.locks.Set(*req.Write, req.ErrorMessage))
}

// lockRequest is the body of POST /locks; write has no default.
type lockRequest struct {
	Write        *bool   `json:"write"`
	ErrorMessage *string `json:"error_message"`
}

func (s *APIServer) getStackTrace(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()

	s.writeResult(w, start, stacktrace.Capture())
}

// getLoggerConfig returns the live configuration without an envelope.
func (s *APIServer) getLoggerConfig(w http.ResponseWriter, _ *http.Request) {
	if s.loggerCtl == nil {
		s.writeFailure(w, time.Now(), errLoggerUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(s.loggerCtl.GetConfig()); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to encode logger configuration")
	}
}

// putLoggerConfig applies a partial logger configuration.
func (s *APIServer) putLoggerConfig(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if s.loggerCtl == nil {
		s.writeFailure(w, start, errLoggerUnavailable)
		return
	}

	diff, err := logger.ParseConfigDiff(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeFailure(w, start, err)
		return
	}

	if err := s.loggerCtl.UpdateConfig(r.Context(), *diff); err != nil {
		s.writeFailure(w, start, err)
		return
	}

	s.writeResult(w, start, true)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	_, _ = io.WriteString(w, healthzBody)
}

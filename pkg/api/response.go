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
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/carverauto/serviceradar-admin/pkg/logger"
)

const statusOK = "ok"

// envelope is the body of every timed response.
type envelope struct {
	Result interface{} `json:"result,omitempty"`
	Status interface{} `json:"status"`
	Time   float64     `json:"time"`
}

type failureStatus struct {
	Error string `json:"error"`
}

// requestError is a malformed query parameter or request body.
type requestError struct {
	msg string
}

func (e *requestError) Error() string {
	return e.msg
}

func badRequest(format string, args ...interface{}) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// statusFor maps a handler error onto an HTTP status code. Caller mistakes
// are 400; collector failures (*telemetry.ServiceError) and everything else
// are 500.
func statusFor(err error) int {
	var reqErr *requestError

	var validationErr *logger.ValidationError

	if errors.As(err, &reqErr) || errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

func (s *APIServer) writeResult(w http.ResponseWriter, start time.Time, result interface{}) {
	s.writeEnvelope(w, http.StatusOK, envelope{
		Result: result,
		Status: statusOK,
		Time:   time.Since(start).Seconds(),
	})
}

func (s *APIServer) writeFailure(w http.ResponseWriter, start time.Time, err error) {
	code := statusFor(err)

	event := s.logger.Debug()
	if code >= http.StatusInternalServerError {
		event = s.logger.Error()
	}

	event.Err(err).Int("status", code).Msg("Admin request failed")

	s.writeEnvelope(w, code, envelope{
		Status: failureStatus{Error: err.Error()},
		Time:   time.Since(start).Seconds(),
	})
}

func (s *APIServer) writeEnvelope(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to encode response")
	}
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badRequest("invalid %s parameter %q: expected a boolean", name, raw)
	}

	return v, nil
}

// queryUint parses an optional unsigned integer query parameter.
func queryUint(r *http.Request, name string, def uint) (uint, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.ParseUint(raw, 10, strconv.IntSize)
	if err != nil {
		return 0, badRequest("invalid %s parameter %q: expected an unsigned integer", name, raw)
	}

	return uint(v), nil
}

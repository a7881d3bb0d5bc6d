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

package telemetry

import "errors"

var (
	ErrCollectorClosed = errors.New("telemetry collector is shutting down")
	errNilSnapshot     = errors.New("collector returned no data")
)

// ServiceError wraps a failure of the underlying collector.
type ServiceError struct {
	Cause error
}

func (e *ServiceError) Error() string {
	return "telemetry service error: " + e.Cause.Error()
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

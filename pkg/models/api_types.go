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


package models

// ErrorResponse is returned by middleware that rejects a request before it
// reaches an enveloped handler.
type ErrorResponse struct {
	// Error message
	Message string `json:"message" example:"Unauthorized"`
	// HTTP status code
	Status int `json:"status" example:"401"`
}

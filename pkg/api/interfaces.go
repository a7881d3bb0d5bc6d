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
	"context"

	"github.com/carverauto/serviceradar-admin/pkg/locks"
	"github.com/carverauto/serviceradar-admin/pkg/logger"
	"github.com/carverauto/serviceradar-admin/pkg/telemetry"
)

// LockController reads and swaps the process-wide write lock.
type LockController interface {
	Get() locks.State
	Set(write bool, reason *string) locks.State
}

// TelemetryProvider produces telemetry snapshots and their metrics view.
type TelemetryProvider interface {
	Telemetry(ctx context.Context, anonymize bool, detailsLevel uint) (*telemetry.Data, error)
	Metrics(ctx context.Context, anonymize bool) (string, error)
}

// LoggerController exposes the live logging configuration.
type LoggerController interface {
	GetConfig() logger.Config
	UpdateConfig(ctx context.Context, diff logger.ConfigDiff) error
}

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

//go:generate mockgen -destination=mock_collector.go -package=telemetry github.com/carverauto/serviceradar-admin/pkg/telemetry Collector,Source

package telemetry

import (
	"context"

	"github.com/carverauto/serviceradar-admin/pkg/locks"
)

// Collector materializes a snapshot at the requested verbosity. It is not
// required to be safe for concurrent use; Snapshotter serializes calls.
type Collector interface {
	PrepareData(ctx context.Context, detailsLevel uint) (*Data, error)
}

// Source reports telemetry for one engine component.
type Source interface {
	Name() string
	Collect(ctx context.Context, detailsLevel uint) (ComponentTelemetry, error)
}

// LockReader exposes the current write lock state.
type LockReader interface {
	Get() locks.State
}

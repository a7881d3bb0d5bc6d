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

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/carverauto/serviceradar-admin/pkg/logger"
)

// Snapshotter gives callers exclusive, first-come access to a Collector.
// The guard is held only while the collector prepares data.
type Snapshotter struct {
	collector Collector
	guard     *semaphore.Weighted
	log       logger.Logger
}

func NewSnapshotter(collector Collector, log logger.Logger) *Snapshotter {
	return &Snapshotter{
		collector: collector,
		guard:     semaphore.NewWeighted(1),
		log:       log,
	}
}

// Snapshot waits for the collector, prepares one snapshot and releases the
// collector before returning. A caller that gives up while waiting returns
// ctx.Err() without ever holding the guard.
func (s *Snapshotter) Snapshot(ctx context.Context, detailsLevel uint) (*Data, error) {
	if err := s.guard.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := s.collector.PrepareData(ctx, detailsLevel)

	s.guard.Release(1)

	if err != nil {
		s.log.Warn().Err(err).Uint("details_level", detailsLevel).Msg("Telemetry snapshot failed")

		return nil, &ServiceError{Cause: err}
	}

	if data == nil {
		return nil, &ServiceError{Cause: errNilSnapshot}
	}

	s.log.Debug().
		Uint("details_level", detailsLevel).
		Dur("elapsed", time.Since(start)).
		Msg("Telemetry snapshot prepared")

	return data, nil
}

// Telemetry returns a structured snapshot, anonymized on request.
func (s *Snapshotter) Telemetry(ctx context.Context, anonymize bool, detailsLevel uint) (*Data, error) {
	data, err := s.Snapshot(ctx, detailsLevel)
	if err != nil {
		return nil, err
	}

	if anonymize {
		data = Anonymize(data)
	}

	return data, nil
}

// Metrics returns the flat text view of a snapshot taken at
// MetricsDetailsLevel.
func (s *Snapshotter) Metrics(ctx context.Context, anonymize bool) (string, error) {
	data, err := s.Telemetry(ctx, anonymize, MetricsDetailsLevel)
	if err != nil {
		return "", err
	}

	return FormatMetrics(data)
}

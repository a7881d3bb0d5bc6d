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
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/carverauto/serviceradar-admin/pkg/telemetry"

type routeCounter struct {
	count    uint64
	errors   uint64
	total    time.Duration
	min      time.Duration
	max      time.Duration
	last     time.Duration
	statuses map[int]uint64
}

// RequestStats counts handled requests per route. Counts are kept in memory
// for snapshots and mirrored to OpenTelemetry instruments for export.
type RequestStats struct {
	mu     sync.Mutex
	routes map[string]*routeCounter

	requests metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// NewRequestStats creates the counters on meter, or on the global meter
// provider when meter is nil.
func NewRequestStats(meter metric.Meter) (*RequestStats, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	requests, err := meter.Int64Counter("serviceradar_admin_requests_total",
		metric.WithDescription("Admin API requests handled"))
	if err != nil {
		return nil, fmt.Errorf("failed to create requests counter: %w", err)
	}

	failures, err := meter.Int64Counter("serviceradar_admin_request_errors_total",
		metric.WithDescription("Admin API requests answered with a 4xx or 5xx status"))
	if err != nil {
		return nil, fmt.Errorf("failed to create errors counter: %w", err)
	}

	duration, err := meter.Float64Histogram("serviceradar_admin_request_duration_seconds",
		metric.WithDescription("Admin API request handling time"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &RequestStats{
		routes:   make(map[string]*routeCounter),
		requests: requests,
		failures: failures,
		duration: duration,
	}, nil
}

// Observe records one request against "METHOD route".
func (s *RequestStats) Observe(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	key := method + " " + route
	failed := status >= http.StatusBadRequest

	s.mu.Lock()

	rc, ok := s.routes[key]
	if !ok {
		rc = &routeCounter{min: elapsed, statuses: make(map[int]uint64)}
		s.routes[key] = rc
	}

	rc.count++
	rc.total += elapsed
	rc.last = elapsed
	rc.statuses[status]++

	if failed {
		rc.errors++
	}

	if elapsed < rc.min {
		rc.min = elapsed
	}

	if elapsed > rc.max {
		rc.max = elapsed
	}

	s.mu.Unlock()

	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)

	s.requests.Add(ctx, 1, attrs)
	s.duration.Record(ctx, elapsed.Seconds(), attrs)

	if failed {
		s.failures.Add(ctx, 1, attrs)
	}
}

// Snapshot returns a copy of the per-route statistics.
func (s *RequestStats) Snapshot() map[string]RouteStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]RouteStats, len(s.routes))

	for key, rc := range s.routes {
		stats := RouteStats{
			Count:       rc.count,
			Errors:      rc.errors,
			MinSeconds:  rc.min.Seconds(),
			MaxSeconds:  rc.max.Seconds(),
			LastSeconds: rc.last.Seconds(),
			Statuses:    make(map[string]uint64, len(rc.statuses)),
		}

		if rc.count > 0 {
			stats.AvgSeconds = rc.total.Seconds() / float64(rc.count)
		}

		for code, n := range rc.statuses {
			stats.Statuses[strconv.Itoa(code)] = n
		}

		out[key] = stats
	}

	return out
}

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
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metricLines(out string) []string {
	var names []string

	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		names = append(names, line)
	}

	return names
}

func TestFormatMetrics_FlattensNumericLeaves(t *testing.T) {
	out, err := FormatMetrics(sampleData(1))
	require.NoError(t, err)

	assert.Contains(t, out, "# TYPE serviceradar_app_uptime_seconds gauge\nserviceradar_app_uptime_seconds 42\n")
	assert.Contains(t, out, "serviceradar_system_cpu_count 8\n")
	assert.Contains(t, out, "serviceradar_components_storage_values_segments 12\n")
	assert.Contains(t, out, "serviceradar_locks_write 1\n")
	assert.Contains(t, out, "serviceradar_anonymized 0\n")
	assert.Contains(t, out, "serviceradar_details_level 1\n")

	// Strings never become metrics.
	assert.NotContains(t, out, "hostname")
	assert.NotContains(t, out, "serviceradar_id")
}

func TestFormatMetrics_SortedAndDeterministic(t *testing.T) {
	first, err := FormatMetrics(sampleData(1))
	require.NoError(t, err)

	second, err := FormatMetrics(sampleData(1))
	require.NoError(t, err)

	assert.Equal(t, first, second)

	lines := metricLines(first)
	require.NotEmpty(t, lines)
	assert.True(t, sort.StringsAreSorted(lines))
}

func TestFormatMetrics_RequestRoutesAndCollisions(t *testing.T) {
	data := &Data{
		Requests: map[string]RouteStats{
			"GET /a-b": {Count: 3, Statuses: map[string]uint64{"200": 3}},
			"GET /a_b": {Count: 9},
		},
	}

	out, err := FormatMetrics(data)
	require.NoError(t, err)

	assert.Contains(t, out, "serviceradar_requests_get_a_b_count 3\n")
	assert.Contains(t, out, "serviceradar_requests_get_a_b_statuses_200 3\n")
	assert.NotContains(t, out, "serviceradar_requests_get_a_b_count 9\n")
	assert.Equal(t, 1, strings.Count(out, "serviceradar_requests_get_a_b_count "))
}

func TestSanitizeSegment(t *testing.T) {
	tests := map[string]string{
		"uptime_seconds": "uptime_seconds",
		"GET /telemetry": "get_telemetry",
		"/locks":         "locks",
		"a--b__c":        "a_b_c",
		"Ünïcode!":       "n_code",
		"":               "",
	}

	for in, want := range tests {
		assert.Equal(t, want, sanitizeSegment(in), in)
	}
}

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
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/tidwall/gjson"
)

const metricPrefix = "serviceradar"

// MetricsContentType is the content type of FormatMetrics output.
const MetricsContentType = "text/plain; version=0.0.4; charset=utf-8"

type sample struct {
	name  string
	value float64
}

// FormatMetrics flattens every numeric or boolean leaf of d into one gauge
// named after its path. Output is sorted by name and identical for identical
// snapshots. When two paths sanitize to the same name the first one wins.
func FormatMetrics(d *Data) (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	var samples []sample

	seen := make(map[string]struct{})

	var walk func(path []string, v gjson.Result)

	walk = func(path []string, v gjson.Result) {
		switch v.Type {
		case gjson.Number:
			samples = addSample(samples, seen, path, v.Float())
		case gjson.True:
			samples = addSample(samples, seen, path, 1)
		case gjson.False:
			samples = addSample(samples, seen, path, 0)
		case gjson.JSON:
			i := 0

			v.ForEach(func(key, value gjson.Result) bool {
				segment := key.String()
				if v.IsArray() {
					segment = strconv.Itoa(i)
				}

				i++

				walk(append(path[:len(path):len(path)], segment), value)

				return true
			})
		case gjson.Null, gjson.String:
		}
	}

	walk([]string{metricPrefix}, gjson.ParseBytes(raw))

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].name < samples[j].name
	})

	var buf bytes.Buffer

	for _, s := range samples {
		if _, err := expfmt.MetricFamilyToText(&buf, gaugeFamily(s)); err != nil {
			return "", fmt.Errorf("failed to render metric %s: %w", s.name, err)
		}
	}

	return buf.String(), nil
}

func addSample(samples []sample, seen map[string]struct{}, path []string, value float64) []sample {
	name := metricName(path)
	if _, dup := seen[name]; dup {
		return samples
	}

	seen[name] = struct{}{}

	return append(samples, sample{name: name, value: value})
}

func gaugeFamily(s sample) *dto.MetricFamily {
	name := s.name
	value := s.value
	typ := dto.MetricType_GAUGE

	return &dto.MetricFamily{
		Name:   &name,
		Type:   &typ,
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: &value}}},
	}
}

func metricName(path []string) string {
	parts := make([]string, 0, len(path))

	for _, p := range path {
		if s := sanitizeSegment(p); s != "" {
			parts = append(parts, s)
		}
	}

	return strings.Join(parts, "_")
}

// sanitizeSegment lowercases p and maps every run of characters outside
// [a-z0-9] to a single underscore.
func sanitizeSegment(p string) string {
	var b strings.Builder

	b.Grow(len(p))

	pendingSep := false

	for _, r := range strings.ToLower(p) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}

			pendingSep = false

			b.WriteRune(r)

			continue
		}

		pendingSep = true
	}

	return b.String()
}

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

package logger

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDiff(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
		wantErr   bool
		check     func(t *testing.T, d *ConfigDiff)
	}{
		{
			name: "level only",
			body: `{"level":"debug"}`,
			check: func(t *testing.T, d *ConfigDiff) {
				t.Helper()
				require.NotNil(t, d.Level)
				assert.Equal(t, "debug", *d.Level)
				assert.Nil(t, d.Output)
			},
		},
		{
			name: "component removal",
			body: `{"components":{"storage":null,"api":"warn"}}`,
			check: func(t *testing.T, d *ConfigDiff) {
				t.Helper()
				require.Contains(t, d.Components, "storage")
				assert.Nil(t, d.Components["storage"])
				assert.Equal(t, "warn", *d.Components["api"])
			},
		},
		{
			name: "otel batch timeout",
			body: `{"otel":{"enabled":true,"endpoint":"c:4317","batch_timeout":"2s"}}`,
			check: func(t *testing.T, d *ConfigDiff) {
				t.Helper()
				require.NotNil(t, d.OTel)
				assert.Equal(t, Duration(2*time.Second), *d.OTel.BatchTimeout)
			},
		},
		{name: "unknown field", body: `{"verbosity":"high"}`, wantErr: true, wantField: "verbosity"},
		{name: "wrong type", body: `{"debug":"yes"}`, wantErr: true, wantField: "debug"},
		{name: "empty body", body: ``, wantErr: true},
		{name: "malformed", body: `{"level":`, wantErr: true},
		{name: "trailing object", body: `{} {}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseConfigDiff(strings.NewReader(tt.body))
			if tt.wantErr {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.wantField, verr.Field)

				return
			}

			require.NoError(t, err)
			tt.check(t, d)
		})
	}
}

func TestMerge_DoesNotAliasInput(t *testing.T) {
	current := Config{
		Level:      "info",
		Output:     OutputStdout,
		Format:     FormatJSON,
		Components: map[string]string{"api": "debug"},
	}

	merged := Merge(current, ConfigDiff{
		Format:     strPtr(FormatConsole),
		Components: map[string]*string{"storage": strPtr("warn")},
	})

	assert.Equal(t, FormatConsole, merged.Format)
	assert.Equal(t, map[string]string{"api": "debug", "storage": "warn"}, merged.Components)
	assert.Equal(t, FormatJSON, current.Format)
	assert.Equal(t, map[string]string{"api": "debug"}, current.Components)
}

func TestConfigDiff_IsEmpty(t *testing.T) {
	assert.True(t, (&ConfigDiff{}).IsEmpty())
	assert.False(t, (&ConfigDiff{Debug: boolPtr(false)}).IsEmpty())
}

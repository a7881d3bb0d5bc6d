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
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Duration
		wantErr bool
	}{
		{name: "string", input: `"5s"`, want: Duration(5 * time.Second)},
		{name: "nanoseconds", input: `2500000000`, want: Duration(2500 * time.Millisecond)},
		{name: "compound", input: `"1m30s"`, want: Duration(90 * time.Second)},
		{name: "bad string", input: `"soon"`, wantErr: true},
		{name: "bad type", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestConfig_BatchTimeoutRoundTrip(t *testing.T) {
	raw := `{
		"level": "info",
		"output": "stderr",
		"format": "json",
		"otel": {"enabled": true, "endpoint": "collector:4317", "batch_timeout": "10s", "headers": {"x-api-key": "k"}}
	}`

	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	require.NoError(t, cfg.Validate(nil))
	assert.Equal(t, Duration(10*time.Second), cfg.OTel.BatchTimeout)
	assert.Equal(t, "k", cfg.OTel.Headers["x-api-key"])

	out, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"batch_timeout":"10s"`)
}

func TestConfigDiff_BatchTimeout(t *testing.T) {
	diff, err := ParseConfigDiff(strings.NewReader(`{"otel": {"batch_timeout": "750ms"}}`))
	require.NoError(t, err)

	cfg := Merge(*testConfig(), *diff)
	assert.Equal(t, Duration(750*time.Millisecond), cfg.OTel.BatchTimeout)
	assert.Equal(t, "info", cfg.Level)

	_, err = ParseConfigDiff(strings.NewReader(`{"otel": {"batch_timeout": "later"}}`))
	require.Error(t, err)
}

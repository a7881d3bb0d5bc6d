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


package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type sampleConfig struct {
	Public string       `json:"public"`
	Secret string       `json:"secret" sensitive:"true"`
	Nested sampleNested `json:"nested"`
}

type sampleNested struct {
	Value  string `json:"value"`
	Secret string `json:"secret" sensitive:"true"`
}

func TestSanitizeConfig_RemovesSensitiveFields(t *testing.T) {
	cfg := sampleConfig{
		Public: "visible",
		Secret: "top-secret",
		Nested: sampleNested{
			Value:  "nested",
			Secret: "nested-secret",
		},
	}

	data, err := sanitizeConfig(cfg)
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &result))

	require.Equal(t, "visible", result["public"])
	require.NotContains(t, result, "secret")

	nested := result["nested"].(map[string]interface{})
	require.Equal(t, "nested", nested["value"])
	require.NotContains(t, nested, "secret")
}

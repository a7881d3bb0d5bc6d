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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnonymize_RemovesIdentity(t *testing.T) {
	original := sampleData(2)

	anon := Anonymize(original)
	require.NotNil(t, anon)

	assert.True(t, anon.Anonymized)
	assert.True(t, strings.HasPrefix(anon.ID, anonPrefix))
	assert.True(t, strings.HasPrefix(anon.System.Hostname, anonPrefix))
	assert.True(t, strings.HasPrefix(anon.System.HostID, anonPrefix))
	assert.Zero(t, anon.System.BootTime)
	assert.Empty(t, anon.System.Addresses)
	assert.True(t, strings.HasPrefix(anon.Components["storage"].Labels["path"], anonPrefix))

	// Non-identifying values survive.
	assert.Equal(t, 8, anon.System.CPUCount)
	assert.InDelta(t, 12.0, anon.Components["storage"].Values["segments"], 0)
	assert.True(t, anon.Locks.Write)
}

func TestAnonymize_DoesNotModifyInput(t *testing.T) {
	original := sampleData(2)

	Anonymize(original)

	assert.False(t, original.Anonymized)
	assert.Equal(t, "db-01.internal", original.System.Hostname)
	assert.Equal(t, []string{"10.0.0.5/24"}, original.System.Addresses)
	assert.Equal(t, "/var/lib/data", original.Components["storage"].Labels["path"])
}

func TestAnonymize_Idempotent(t *testing.T) {
	once := Anonymize(sampleData(2))
	twice := Anonymize(once)

	assert.Equal(t, once, twice)
}

func TestAnonymize_Deterministic(t *testing.T) {
	assert.Equal(t, Anonymize(sampleData(1)), Anonymize(sampleData(1)))
	assert.Nil(t, Anonymize(nil))
}

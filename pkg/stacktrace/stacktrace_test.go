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

package stacktrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDump = `goroutine 1 [running]:
main.main()
	/src/cmd/admin/main.go:42 +0x1d

goroutine 18 [chan receive, 3 minutes, locked to thread]:
github.com/carverauto/serviceradar-admin/pkg/api.(*APIServer).Start(0xc000123456, {0x1, 0x2})
	/src/pkg/api/server.go:120 +0x2a5
created by main.run in goroutine 1
	/src/cmd/admin/main.go:30 +0x88
`

func TestParse(t *testing.T) {
	st := Parse([]byte(sampleDump))

	require.Equal(t, 2, st.Count)
	require.Len(t, st.Goroutines, 2)

	main := st.Goroutines[0]
	assert.Equal(t, int64(1), main.ID)
	assert.Equal(t, "running", main.State)
	require.Len(t, main.Frames, 1)
	assert.Equal(t, Frame{Function: "main.main", File: "/src/cmd/admin/main.go", Line: 42}, main.Frames[0])
	assert.Nil(t, main.CreatedBy)

	worker := st.Goroutines[1]
	assert.Equal(t, int64(18), worker.ID)
	assert.Equal(t, "chan receive", worker.State)
	assert.Equal(t, 3, worker.WaitMinutes)
	assert.True(t, worker.LockedToThread)
	require.Len(t, worker.Frames, 1)
	assert.Equal(t, "github.com/carverauto/serviceradar-admin/pkg/api.(*APIServer).Start", worker.Frames[0].Function)
	assert.Equal(t, 120, worker.Frames[0].Line)
	require.NotNil(t, worker.CreatedBy)
	assert.Equal(t, Frame{Function: "main.run", File: "/src/cmd/admin/main.go", Line: 30}, *worker.CreatedBy)
}

func TestParse_Empty(t *testing.T) {
	st := Parse(nil)

	assert.Zero(t, st.Count)
	assert.NotNil(t, st.Goroutines)
}

func TestCapture_IncludesCurrentGoroutine(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	go func() { <-block }()

	st := Capture()

	require.GreaterOrEqual(t, st.Count, 2)
	assert.False(t, st.Truncated)

	found := false

	for _, g := range st.Goroutines {
		for _, f := range g.Frames {
			if f.Function == "github.com/carverauto/serviceradar-admin/pkg/stacktrace.TestCapture_IncludesCurrentGoroutine" {
				found = true
			}
		}
	}

	assert.True(t, found)
}

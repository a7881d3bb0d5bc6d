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


package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "admin.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestRun_StopsWhenContextIsCancelled(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := writeConfig(t, `{
		"listen_addr": "127.0.0.1:0",
		"telemetry": {"components": ["storage"]},
		"logging": {"level": "error", "output": "stderr"}
	}`)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	assert.NoError(t, Run(ctx, Options{ConfigPath: path}))
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := writeConfig(t, `{"logging": {"level": "chatty"}}`)

	assert.Error(t, Run(context.Background(), Options{ConfigPath: path}))
}

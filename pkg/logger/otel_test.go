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
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	log "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// memoryExporter keeps every exported record.
type memoryExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *memoryExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range records {
		e.records = append(e.records, records[i].Clone())
	}

	return nil
}

func (*memoryExporter) Shutdown(context.Context) error   { return nil }
func (*memoryExporter) ForceFlush(context.Context) error { return nil }

func (e *memoryExporter) snapshot() []sdklog.Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]sdklog.Record(nil), e.records...)
}

func attributes(r *sdklog.Record) map[string]string {
	out := make(map[string]string, r.AttributesLen())

	r.WalkAttributes(func(kv log.KeyValue) bool {
		out[kv.Key] = kv.Value.AsString()
		return true
	})

	return out
}

func otelTestConfig() *Config {
	cfg := testConfig()
	cfg.OTel = OTelConfig{Enabled: true, Endpoint: "collector:4317", ServiceName: "admin-test"}

	return cfg
}

// newOTelTestHandle builds a handle whose OTel sink is a real OTelWriter
// exporting synchronously into memory.
func newOTelTestHandle(t *testing.T, cfg *Config, opts ...HandleOption) (*Handle, *memoryExporter) {
	t.Helper()

	exp := &memoryExporter{}

	factory := func(_ context.Context, c *Config) (OTelExporter, error) {
		provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
		return newOTelWriter(provider, WithRecordTimeFormat(c.TimeFormat)), nil
	}

	h, _, _ := newTestHandle(t, cfg, append(opts, WithOTelFactory(factory))...)

	t.Cleanup(func() { _ = h.Close(context.Background()) })

	return h, exp
}

func TestOTelWriter_RecordsCarryComponentScope(t *testing.T) {
	h, exp := newOTelTestHandle(t, otelTestConfig(), WithComponents("storage"))

	h.WithComponent("storage").Warn().
		Str("peer", "db-01").
		Int64("bytes", 1234567890).
		Bool("retry", true).
		Msg("compaction stalled")
	h.Logger().Info().Msg("admin ready")

	records := exp.snapshot()
	require.Len(t, records, 2)

	storage := records[0]
	assert.Equal(t, "storage", storage.InstrumentationScope().Name)
	assert.Equal(t, log.SeverityWarn, storage.Severity())
	assert.Equal(t, "warn", storage.SeverityText())
	assert.Equal(t, "compaction stalled", storage.Body().AsString())
	assert.False(t, storage.Timestamp().IsZero())
	assert.Equal(t, map[string]string{
		"peer":  "db-01",
		"bytes": "1234567890",
		"retry": "true",
	}, attributes(&storage))

	root := records[1]
	assert.Equal(t, defaultScope, root.InstrumentationScope().Name)
	assert.Equal(t, log.SeverityInfo, root.Severity())
	assert.Empty(t, attributes(&root))
}

func TestOTelWriter_TruncatesLargeValues(t *testing.T) {
	h, exp := newOTelTestHandle(t, otelTestConfig())

	ids := []int{1, 2, 3, 4, 5, 6, 7}
	shards := make(map[string]int, 8)

	for i := 0; i < 8; i++ {
		shards[fmt.Sprintf("shard-%d", i)] = i
	}

	h.Logger().Error().
		Str("payload", strings.Repeat("x", 2*maxAttributeValueLength)).
		Interface("ids", ids).
		Interface("shards", shards).
		Interface("small", []string{"a", "b"}).
		Msg("oversized")

	records := exp.snapshot()
	require.Len(t, records, 1)

	attrs := attributes(&records[0])

	assert.Len(t, attrs["payload"], maxAttributeValueLength)
	assert.True(t, strings.HasSuffix(attrs["payload"], "..."))
	assert.Equal(t, "[1, 2, 3, 4, 5, ...] (total=7, truncated)", attrs["ids"])
	assert.Equal(t, "{keys=8, sample=[shard-0, shard-1, shard-2, shard-3, shard-4, ...], truncated}", attrs["shards"])
	assert.Equal(t, `["a","b"]`, attrs["small"])
	assert.Equal(t, "ids,payload,shards", attrs[truncatedKeysAttribute])
}

func TestOTelWriter_TimestampFollowsTimeFormat(t *testing.T) {
	for _, format := range []string{"", TimeFormatUnix, TimeFormatUnixMs, "2006-01-02T15:04:05.000Z07:00"} {
		t.Run("format="+format, func(t *testing.T) {
			cfg := otelTestConfig()
			cfg.TimeFormat = format

			h, exp := newOTelTestHandle(t, cfg)
			h.Logger().Info().Msg("stamped")

			records := exp.snapshot()
			require.Len(t, records, 1)
			assert.WithinDuration(t, time.Now(), records[0].Timestamp(), 2*time.Second)
			assert.NotContains(t, attributes(&records[0]), "time")
		})
	}
}

func TestOTelWriter_TimeFormatChangeRebuildsWriter(t *testing.T) {
	h, exp := newOTelTestHandle(t, otelTestConfig())

	require.NoError(t, h.UpdateConfig(context.Background(), ConfigDiff{TimeFormat: strPtr(TimeFormatUnixMs)}))
	h.Logger().Info().Msg("after change")

	records := exp.snapshot()
	require.Len(t, records, 1)
	assert.WithinDuration(t, time.Now(), records[0].Timestamp(), 2*time.Second)
}

func TestOTelWriter_DropsLinesThatAreNotJSON(t *testing.T) {
	exp := &memoryExporter{}
	w := newOTelWriter(sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp))))

	n, err := w.Write([]byte("plain text\n"))
	require.NoError(t, err)
	assert.Equal(t, len("plain text\n"), n)
	assert.Empty(t, exp.snapshot())

	require.NoError(t, w.Shutdown(context.Background()))
}

func TestNewOTELWriter_RequiresEnabledEndpoint(t *testing.T) {
	w, err := NewOTELWriter(context.Background(), OTelConfig{})
	require.ErrorIs(t, err, ErrOTelLoggingDisabled)
	assert.Nil(t, w)

	w, err = NewOTELWriter(context.Background(), OTelConfig{Enabled: true})
	require.ErrorIs(t, err, ErrOTelEndpointRequired)
	assert.Nil(t, w)
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name  string
		value string
		limit int
		want  string
		cut   bool
	}{
		{name: "fits", value: "lock", limit: 4, want: "lock"},
		{name: "ascii", value: "maintenance", limit: 8, want: "maint...", cut: true},
		{name: "no room for suffix", value: "maintenance", limit: 3, want: "mai", cut: true},
		{name: "rune boundary", value: "ééé", limit: 5, want: "é...", cut: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cut := truncateString(tt.value, tt.limit)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.cut, cut)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, len(got), tt.limit)
		})
	}
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, log.SeverityTrace, severityFor("trace"))
	assert.Equal(t, log.SeverityDebug, severityFor("debug"))
	assert.Equal(t, log.SeverityWarn, severityFor("WARN"))
	assert.Equal(t, log.SeverityError, severityFor("error"))
	assert.Equal(t, log.SeverityFatal, severityFor("fatal"))
	assert.Equal(t, log.SeverityFatal4, severityFor("panic"))
	assert.Equal(t, log.SeverityInfo, severityFor("something"))
}

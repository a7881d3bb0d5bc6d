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
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	log "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"
	"google.golang.org/grpc/credentials"

	"github.com/carverauto/serviceradar-admin/pkg/version"
)

var (
	ErrOTelLoggingDisabled  = errors.New("OTel logging is disabled")
	ErrOTelEndpointRequired = errors.New("OTel endpoint is required when enabled")
	errFailedToParseCACert  = errors.New("failed to parse CA certificate")
)

const (
	maxAttributeValueLength   = 4096
	maxStructuredPreviewCount = 5
	maxPreviewElementLength   = 64
	truncatedKeysAttribute    = "otel.truncated_keys"
	defaultScope              = "serviceradar-admin"
	componentField            = "component"
)

// OTelWriter converts zerolog JSON lines into OTLP log records. Each writer
// owns its provider; nothing is registered globally, so a reconfigured
// logger can retire one writer while its successor is already live.
type OTelWriter struct {
	provider   *sdklog.LoggerProvider
	timeFormat string
	loggers    map[string]log.Logger
	mu         sync.Mutex
}

type OTelWriterOption func(*OTelWriter)

// WithRecordTimeFormat tells the writer how the time field of incoming lines
// is encoded; it takes the same values as Config.TimeFormat.
func WithRecordTimeFormat(format string) OTelWriterOption {
	return func(w *OTelWriter) {
		w.timeFormat = format
	}
}

func newOTelWriter(provider *sdklog.LoggerProvider, opts ...OTelWriterOption) *OTelWriter {
	w := &OTelWriter{
		provider: provider,
		loggers:  make(map[string]log.Logger),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

type OTelConfig struct {
	Enabled      bool              `json:"enabled" yaml:"enabled"`
	Endpoint     string            `json:"endpoint" yaml:"endpoint"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" sensitive:"true"`
	ServiceName  string            `json:"service_name" yaml:"service_name"`
	BatchTimeout Duration          `json:"batch_timeout" yaml:"batch_timeout"`
	Insecure     bool              `json:"insecure" yaml:"insecure"`
	TLS          *TLSConfig        `json:"tls,omitempty" yaml:"tls,omitempty"`
}

type TLSConfig struct {
	CertFile string `json:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file"`
	CAFile   string `json:"ca_file,omitempty" yaml:"ca_file,omitempty"`
}

func (c *OTelConfig) equal(o *OTelConfig) bool {
	if c.Enabled != o.Enabled || c.Endpoint != o.Endpoint || c.ServiceName != o.ServiceName ||
		c.BatchTimeout != o.BatchTimeout || c.Insecure != o.Insecure {
		return false
	}

	if len(c.Headers) != len(o.Headers) {
		return false
	}

	for k, v := range c.Headers {
		if ov, ok := o.Headers[k]; !ok || ov != v {
			return false
		}
	}

	switch {
	case c.TLS == nil && o.TLS == nil:
		return true
	case c.TLS == nil || o.TLS == nil:
		return false
	default:
		return *c.TLS == *o.TLS
	}
}

func NewOTELWriter(ctx context.Context, config OTelConfig, opts ...OTelWriterOption) (*OTelWriter, error) {
	if !config.Enabled {
		return nil, ErrOTelLoggingDisabled
	}

	if config.Endpoint == "" {
		return nil, ErrOTelEndpointRequired
	}

	opts := []otlploggrpc.Option{
		otlploggrpc.WithEndpoint(config.Endpoint),
	}

	if config.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	} else if config.TLS != nil {
		tlsConfig, err := setupTLSConfig(config.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to setup TLS configuration: %w", err)
		}

		opts = append(opts, otlploggrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig)))
	}

	if len(config.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(config.Headers))
	}

	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	res, err := newResource(ctx, config.ServiceName, "")
	if err != nil {
		return nil, err
	}

	batchTimeout := time.Duration(config.BatchTimeout)
	if batchTimeout == 0 {
		batchTimeout = 5 * time.Second
	}

	processor := sdklog.NewBatchProcessor(exporter, sdklog.WithExportTimeout(batchTimeout))

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(processor),
	)

	return newOTelWriter(provider, opts...), nil
}

// Shutdown flushes buffered records and stops the exporter.
func (w *OTelWriter) Shutdown(ctx context.Context) error {
	if w.provider == nil {
		return nil
	}

	if err := w.provider.ForceFlush(ctx); err != nil {
		_ = w.provider.Shutdown(ctx)

		return fmt.Errorf("failed to flush OTel logs: %w", err)
	}

	return w.provider.Shutdown(ctx)
}

func newResource(ctx context.Context, serviceName, serviceVersion string) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = defaultScope
	}

	if serviceVersion == "" {
		serviceVersion = version.GetVersion()
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return res, nil
}

// Write converts one zerolog JSON line into an OTLP record. Lines that do not
// decode as a JSON object are dropped here; the primary output keeps them.
func (w *OTelWriter) Write(p []byte) (int, error) {
	if w.provider == nil {
		return len(p), nil
	}

	entry, err := decodeEntry(p)
	if err != nil {
		return len(p), nil
	}

	var record log.Record

	if ts, ok := w.recordTime(entry[zerolog.TimestampFieldName]); ok {
		record.SetTimestamp(ts)
		delete(entry, zerolog.TimestampFieldName)
	}

	if level, ok := entry[zerolog.LevelFieldName].(string); ok {
		record.SetSeverity(severityFor(level))
		record.SetSeverityText(level)
		delete(entry, zerolog.LevelFieldName)
	}

	if message, ok := entry[zerolog.MessageFieldName].(string); ok {
		record.SetBody(log.StringValue(message))
		delete(entry, zerolog.MessageFieldName)
	}

	scope := defaultScope
	if component, ok := entry[componentField].(string); ok && component != "" {
		scope = component
		delete(entry, componentField)
	}

	record.AddAttributes(entryAttributes(entry)...)

	w.scopeLogger(scope).Emit(context.Background(), record)

	return len(p), nil
}

// scopeLogger returns the OTel logger for a component; records of one
// component share one instrumentation scope.
func (w *OTelWriter) scopeLogger(scope string) log.Logger {
	w.mu.Lock()
	defer w.mu.Unlock()

	l, ok := w.loggers[scope]
	if !ok {
		l = w.provider.Logger(scope)
		w.loggers[scope] = l
	}

	return l
}

// recordTime reads the timestamp the way timestampHook wrote it.
func (w *OTelWriter) recordTime(value interface{}) (time.Time, bool) {
	switch w.timeFormat {
	case TimeFormatUnix, TimeFormatUnixMs:
		n, ok := value.(json.Number)
		if !ok {
			return time.Time{}, false
		}

		v, err := n.Int64()
		if err != nil {
			return time.Time{}, false
		}

		if w.timeFormat == TimeFormatUnix {
			return time.Unix(v, 0), true
		}

		return time.UnixMilli(v), true
	}

	text, ok := value.(string)
	if !ok {
		return time.Time{}, false
	}

	layout := w.timeFormat
	if layout == "" {
		layout = time.RFC3339
	}

	ts, err := time.Parse(layout, text)
	if err != nil {
		return time.Time{}, false
	}

	return ts, true
}

func decodeEntry(p []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(p))
	dec.UseNumber()

	entry := make(map[string]interface{})
	if err := dec.Decode(&entry); err != nil {
		return nil, err
	}

	return entry, nil
}

// entryAttributes flattens the remaining fields into string attributes in key
// order. Keys whose value had to be shortened are listed under
// truncatedKeysAttribute.
func entryAttributes(entry map[string]interface{}) []log.KeyValue {
	keys := make([]string, 0, len(entry))
	for key := range entry {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	attrs := make([]log.KeyValue, 0, len(keys)+1)

	var truncated []string

	for _, key := range keys {
		value, cut := formatAttributeValue(entry[key])
		attrs = append(attrs, log.String(key, value))

		if cut {
			truncated = append(truncated, key)
		}
	}

	if len(truncated) > 0 {
		attrs = append(attrs, log.String(truncatedKeysAttribute, strings.Join(truncated, ",")))
	}

	return attrs
}

func formatAttributeValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "null", false
	case string:
		return truncateString(v, maxAttributeValueLength)
	case bool:
		return strconv.FormatBool(v), false
	case json.Number:
		return v.String(), false
	case []interface{}:
		return summarizeSlice(v)
	case map[string]interface{}:
		return summarizeMap(v)
	default:
		return truncateString(fmt.Sprintf("%v", v), maxAttributeValueLength)
	}
}

// summarizeSlice keeps small arrays as JSON and replaces larger ones with a
// preview of their first elements.
func summarizeSlice(items []interface{}) (string, bool) {
	if len(items) == 0 {
		return "[]", false
	}

	if len(items) <= maxStructuredPreviewCount {
		if payload, err := json.Marshal(items); err == nil {
			return truncateString(string(payload), maxAttributeValueLength)
		}
	}

	n := min(len(items), maxStructuredPreviewCount)
	previews := make([]string, 0, n)

	for _, item := range items[:n] {
		previews = append(previews, previewString(item))
	}

	summary := fmt.Sprintf("[%s, ...] (total=%d, truncated)", strings.Join(previews, ", "), len(items))
	out, _ := truncateString(summary, maxAttributeValueLength)

	return out, true
}

// summarizeMap keeps small objects as JSON and replaces larger ones with a
// key count and the first keys in order.
func summarizeMap(values map[string]interface{}) (string, bool) {
	if len(values) == 0 {
		return "{}", false
	}

	if len(values) <= maxStructuredPreviewCount {
		if payload, err := json.Marshal(values); err == nil {
			return truncateString(string(payload), maxAttributeValueLength)
		}
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	if len(keys) > maxStructuredPreviewCount {
		keys = keys[:maxStructuredPreviewCount]
	}

	summary := fmt.Sprintf("{keys=%d, sample=[%s, ...], truncated}", len(values), strings.Join(keys, ", "))
	out, _ := truncateString(summary, maxAttributeValueLength)

	return out, true
}

func previewString(value interface{}) string {
	switch v := value.(type) {
	case string:
		s, _ := truncateString(v, maxPreviewElementLength)
		return strconv.Quote(s)
	case map[string]interface{}:
		return fmt.Sprintf("map(len=%d)", len(v))
	case []interface{}:
		return fmt.Sprintf("slice(len=%d)", len(v))
	default:
		s, _ := truncateString(fmt.Sprintf("%v", v), maxPreviewElementLength)
		return s
	}
}

// truncateString cuts value to at most limit bytes on a rune boundary,
// marking the cut with "..." when there is room for it.
func truncateString(value string, limit int) (string, bool) {
	if len(value) <= limit {
		return value, false
	}

	suffix := "..."
	if limit <= len(suffix) {
		suffix = ""
	}

	cut := limit - len(suffix)
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}

	return value[:cut] + suffix, true
}

func severityFor(level string) log.Severity {
	switch strings.ToLower(level) {
	case "trace":
		return log.SeverityTrace
	case "debug":
		return log.SeverityDebug
	case "warn", "warning":
		return log.SeverityWarn
	case "error":
		return log.SeverityError
	case "fatal":
		return log.SeverityFatal
	case "panic":
		return log.SeverityFatal4
	default:
		return log.SeverityInfo
	}
}

func setupTLSConfig(tlsConfig *TLSConfig) (*tls.Config, error) {
	config := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if tlsConfig.CertFile != "" && tlsConfig.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}

		config.Certificates = []tls.Certificate{cert}
	}

	if tlsConfig.CAFile != "" {
		caCert, err := os.ReadFile(tlsConfig.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, errFailedToParseCACert
		}

		config.RootCAs = caCertPool
	}

	return config, nil
}

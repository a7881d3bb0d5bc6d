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
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"

	FormatJSON    = "json"
	FormatConsole = "console"

	// TimeFormatUnix and TimeFormatUnixMs write the time field as a number;
	// any other non-empty TimeFormat is a time layout.
	TimeFormatUnix   = "unix"
	TimeFormatUnixMs = "unixms"
)

// Config is the whole logging configuration in effect for the process.
// Fields tagged reload:"sink" require a new output sink when they change.
type Config struct {
	Level      string            `json:"level" yaml:"level" reload:"level"`
	Debug      bool              `json:"debug" yaml:"debug" reload:"level"`
	Output     string            `json:"output" yaml:"output" reload:"sink"`
	Format     string            `json:"format" yaml:"format" reload:"sink"`
	TimeFormat string            `json:"time_format" yaml:"time_format" reload:"format"`
	Components map[string]string `json:"components,omitempty" yaml:"components,omitempty" reload:"level"`
	OTel       OTelConfig        `json:"otel" yaml:"otel" reload:"sink"`
}

func DefaultConfig() *Config {
	return &Config{
		Level:      getEnvOrDefault("LOG_LEVEL", "info"),
		Debug:      getEnvBoolOrDefault("DEBUG", false),
		Output:     getEnvOrDefault("LOG_OUTPUT", OutputStdout),
		Format:     getEnvOrDefault("LOG_FORMAT", FormatJSON),
		TimeFormat: getEnvOrDefault("LOG_TIME_FORMAT", ""),
		OTel:       DefaultOTelConfig(),
	}
}

func DefaultOTelConfig() OTelConfig {
	headers := make(map[string]string)

	if headerStr := os.Getenv("OTEL_EXPORTER_OTLP_LOGS_HEADERS"); headerStr != "" {
		for _, pair := range strings.Split(headerStr, ",") {
			if kv := strings.SplitN(pair, "=", 2); len(kv) == 2 {
				headers[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
			}
		}
	}

	batchTimeout := 5 * time.Second

	if timeoutStr := os.Getenv("OTEL_EXPORTER_OTLP_LOGS_TIMEOUT"); timeoutStr != "" {
		if duration, err := time.ParseDuration(timeoutStr); err == nil {
			batchTimeout = duration
		}
	}

	return OTelConfig{
		Enabled:      getEnvBoolOrDefault("OTEL_LOGS_ENABLED", false),
		Endpoint:     getEnvOrDefault("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", ""),
		Headers:      headers,
		ServiceName:  getEnvOrDefault("OTEL_SERVICE_NAME", "serviceradar-admin"),
		BatchTimeout: Duration(batchTimeout),
		Insecure:     getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_LOGS_INSECURE", false),
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() Config {
	out := *c
	out.Components = cloneStringMap(c.Components)
	out.OTel.Headers = cloneStringMap(c.OTel.Headers)

	if c.OTel.TLS != nil {
		tls := *c.OTel.TLS
		out.OTel.TLS = &tls
	}

	return out
}

// Validate checks the configuration. known lists the component names that may
// carry a level override; a nil set accepts any name.
func (c *Config) Validate(known map[string]struct{}) error {
	if _, err := parseLevel(c.Level); err != nil {
		return &ValidationError{Field: "level", Reason: err.Error()}
	}

	switch c.Output {
	case OutputStdout, OutputStderr:
	default:
		return &ValidationError{Field: "output", Reason: "must be one of stdout, stderr"}
	}

	switch c.Format {
	case FormatJSON, FormatConsole:
	default:
		return &ValidationError{Field: "format", Reason: "must be one of json, console"}
	}

	for name, lvl := range c.Components {
		if known != nil {
			if _, ok := known[name]; !ok {
				return &ValidationError{Field: "components." + name, Reason: "unknown component"}
			}
		}

		if _, err := parseLevel(lvl); err != nil {
			return &ValidationError{Field: "components." + name, Reason: err.Error()}
		}
	}

	if c.OTel.Enabled && c.OTel.Endpoint == "" {
		return &ValidationError{Field: "otel.endpoint", Reason: ErrOTelEndpointRequired.Error()}
	}

	return nil
}

// rootLevel resolves the effective root level; Debug forces debug.
func (c *Config) rootLevel() zerolog.Level {
	if c.Debug {
		return zerolog.DebugLevel
	}

	level, err := parseLevel(c.Level)
	if err != nil {
		return zerolog.InfoLevel
	}

	return level
}

var levelNames = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"fatal":    zerolog.FatalLevel,
	"panic":    zerolog.PanicLevel,
	"disabled": zerolog.Disabled,
}

// parseLevel accepts level names only, never numeric levels.
func parseLevel(name string) (zerolog.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return zerolog.NoLevel, errEmptyLevel
	}

	level, ok := levelNames[name]
	if !ok {
		return zerolog.NoLevel, fmt.Errorf("%w: %q", errUnknownLevel, name)
	}

	return level, nil
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}

	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	value = strings.ToLower(value)

	return value == "true" || value == "1" || value == "yes" || value == "on"
}

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

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/serviceradar-admin/pkg/logger"
)

var (
	errInvalidDuration    = errors.New("invalid duration")
	errListenAddrRequired = errors.New("listen_addr is required")
	errNegativeTimeout    = errors.New("timeouts must not be negative")
	errEmptyComponent     = errors.New("telemetry component names must not be empty")
)

const (
	DefaultListenAddr      = ":6090"
	DefaultReadTimeout     = Duration(10 * time.Second)
	DefaultWriteTimeout    = Duration(30 * time.Second)
	DefaultIdleTimeout     = Duration(60 * time.Second)
	DefaultShutdownTimeout = Duration(10 * time.Second)
)

// Duration is a time.Duration that decodes from "10s" or from nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// CORSConfig lists the origins allowed to call the admin API from a browser.
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins,omitempty"`
	AllowCredentials bool     `json:"allow_credentials,omitempty"`
}

// TelemetryConfig controls the telemetry collector.
type TelemetryConfig struct {
	// Disabled answers /telemetry and /metrics with a service error.
	Disabled bool `json:"disabled,omitempty"`
	// Components are the engine component names that may report telemetry
	// and carry a per-component log level.
	Components []string `json:"components,omitempty"`
}

// AdminConfig is the configuration file of the admin server.
type AdminConfig struct {
	ListenAddr      string          `json:"listen_addr"`
	APIKey          string          `json:"api_key,omitempty" sensitive:"true"`
	CORS            CORSConfig      `json:"cors,omitempty"`
	ReadTimeout     Duration        `json:"read_timeout,omitempty"`
	WriteTimeout    Duration        `json:"write_timeout,omitempty"`
	IdleTimeout     Duration        `json:"idle_timeout,omitempty"`
	ShutdownTimeout Duration        `json:"shutdown_timeout,omitempty"`
	Logging         *logger.Config  `json:"logging,omitempty"`
	Telemetry       TelemetryConfig `json:"telemetry,omitempty"`
}

// ApplyDefaults fills every unset field.
func (c *AdminConfig) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}

	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}

	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}

	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}

	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()

		return
	}

	// a partially written logging section inherits the remaining defaults
	defaults := logger.DefaultConfig()

	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Level
	}

	if c.Logging.Output == "" {
		c.Logging.Output = defaults.Output
	}

	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Format
	}

	if c.Logging.OTel.ServiceName == "" {
		c.Logging.OTel.ServiceName = defaults.OTel.ServiceName
	}

	if c.Logging.OTel.BatchTimeout == 0 {
		c.Logging.OTel.BatchTimeout = defaults.OTel.BatchTimeout
	}
}

// Validate implements the config loader's validation hook.
func (c *AdminConfig) Validate() error {
	if c.ListenAddr == "" {
		return errListenAddrRequired
	}

	for _, d := range []Duration{c.ReadTimeout, c.WriteTimeout, c.IdleTimeout, c.ShutdownTimeout} {
		if d < 0 {
			return errNegativeTimeout
		}
	}

	for _, name := range c.Telemetry.Components {
		if name == "" {
			return errEmptyComponent
		}
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(componentSet(c.KnownComponents())); err != nil {
			return fmt.Errorf("logging: %w", err)
		}
	}

	return nil
}

// ServiceComponents are the component loggers the admin server itself owns.
var ServiceComponents = []string{"admin-main", "api", "locks", "telemetry"}

// KnownComponents lists the names that may carry a log level override: the
// declared telemetry components plus ServiceComponents. It is nil when no
// telemetry components are declared, which leaves component names open.
func (c *AdminConfig) KnownComponents() []string {
	if len(c.Telemetry.Components) == 0 {
		return nil
	}

	names := make([]string, 0, len(c.Telemetry.Components)+len(ServiceComponents))
	names = append(names, ServiceComponents...)
	names = append(names, c.Telemetry.Components...)

	return names
}

func componentSet(names []string) map[string]struct{} {
	if len(names) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}

	return set
}

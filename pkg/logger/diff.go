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
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	errEmptyLevel   = errors.New("level must not be empty")
	errUnknownLevel = errors.New("unknown level")
	errEmptyDiff    = errors.New("request body is empty")
	errTrailingData = errors.New("unexpected data after diff object")
)

// ValidationError reports a logger diff that cannot be applied. The live
// configuration is never modified when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid logger config: " + e.Reason
	}

	return fmt.Sprintf("invalid logger config field %q: %s", e.Field, e.Reason)
}

// ConfigDiff is a partial Config. Nil fields are left unchanged. A nil value
// in Components removes the override for that component.
type ConfigDiff struct {
	Level      *string            `json:"level,omitempty"`
	Debug      *bool              `json:"debug,omitempty"`
	Output     *string            `json:"output,omitempty"`
	Format     *string            `json:"format,omitempty"`
	TimeFormat *string            `json:"time_format,omitempty"`
	Components map[string]*string `json:"components,omitempty"`
	OTel       *OTelConfigDiff    `json:"otel,omitempty"`
}

// OTelConfigDiff is the partial form of OTelConfig.
type OTelConfigDiff struct {
	Enabled      *bool             `json:"enabled,omitempty"`
	Endpoint     *string           `json:"endpoint,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	ServiceName  *string           `json:"service_name,omitempty"`
	BatchTimeout *Duration         `json:"batch_timeout,omitempty"`
	Insecure     *bool             `json:"insecure,omitempty"`
}

// IsEmpty reports whether the diff changes nothing.
func (d *ConfigDiff) IsEmpty() bool {
	return d.Level == nil && d.Debug == nil && d.Output == nil && d.Format == nil &&
		d.TimeFormat == nil && len(d.Components) == 0 && d.OTel == nil
}

// ParseConfigDiff strictly decodes a diff. Unknown field names are reported
// as a *ValidationError naming the offending field.
func ParseConfigDiff(r io.Reader) (*ConfigDiff, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var diff ConfigDiff
	if err := dec.Decode(&diff); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Reason: errEmptyDiff.Error()}
		}

		return nil, decodeError(err)
	}

	if dec.More() {
		return nil, &ValidationError{Reason: errTrailingData.Error()}
	}

	return &diff, nil
}

func decodeError(err error) error {
	const unknownPrefix = "json: unknown field "

	msg := err.Error()
	if strings.HasPrefix(msg, unknownPrefix) {
		field := strings.Trim(strings.TrimPrefix(msg, unknownPrefix), `"`)

		return &ValidationError{Field: field, Reason: "unknown field"}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ValidationError{Field: typeErr.Field, Reason: "expected " + typeErr.Type.String()}
	}

	return &ValidationError{Reason: "malformed JSON: " + msg}
}

// Merge applies diff on top of current and returns the candidate configuration.
// current is not modified.
func Merge(current Config, diff ConfigDiff) Config {
	out := current.Clone()

	if diff.Level != nil {
		out.Level = *diff.Level
	}

	if diff.Debug != nil {
		out.Debug = *diff.Debug
	}

	if diff.Output != nil {
		out.Output = *diff.Output
	}

	if diff.Format != nil {
		out.Format = *diff.Format
	}

	if diff.TimeFormat != nil {
		out.TimeFormat = *diff.TimeFormat
	}

	for name, level := range diff.Components {
		if level == nil {
			delete(out.Components, name)
			continue
		}

		if out.Components == nil {
			out.Components = make(map[string]string)
		}

		out.Components[name] = *level
	}

	if len(out.Components) == 0 {
		out.Components = nil
	}

	if diff.OTel != nil {
		mergeOTel(&out.OTel, diff.OTel)
	}

	return out
}

func mergeOTel(cfg *OTelConfig, diff *OTelConfigDiff) {
	if diff.Enabled != nil {
		cfg.Enabled = *diff.Enabled
	}

	if diff.Endpoint != nil {
		cfg.Endpoint = *diff.Endpoint
	}

	if diff.Headers != nil {
		cfg.Headers = cloneStringMap(diff.Headers)
	}

	if diff.ServiceName != nil {
		cfg.ServiceName = *diff.ServiceName
	}

	if diff.BatchTimeout != nil {
		cfg.BatchTimeout = *diff.BatchTimeout
	}

	if diff.Insecure != nil {
		cfg.Insecure = *diff.Insecure
	}
}

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
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const anonPrefix = "anon-"

// Anonymize returns a copy of d with identifying values hashed or removed.
// Applying it to its own output returns an equal value.
func Anonymize(d *Data) *Data {
	if d == nil {
		return nil
	}

	out := d.clone()
	out.ID = hashValue(out.ID)

	if out.System != nil {
		out.System.Hostname = hashValue(out.System.Hostname)
		out.System.HostID = hashValue(out.System.HostID)
		out.System.BootTime = 0
		out.System.Addresses = nil
	}

	for name, ct := range out.Components {
		for key, value := range ct.Labels {
			ct.Labels[key] = hashValue(value)
		}

		out.Components[name] = ct
	}

	out.Anonymized = true

	return out
}

func hashValue(s string) string {
	if s == "" || strings.HasPrefix(s, anonPrefix) {
		return s
	}

	return anonPrefix + strconv.FormatUint(xxhash.Sum64String(s), 16)
}

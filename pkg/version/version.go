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


// Package version reports the build identity of the admin binary.
package version

import (
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/carverauto/serviceradar-admin/pkg/version.version=...".
//
//nolint:gochecknoglobals // ldflags injection
var (
	version = "dev"
	buildID = "dev"
)

// GetVersion returns the current version.
func GetVersion() string {
	return version
}

// GetBuildID returns the build ID. Without an injected one, the VCS
// revision embedded by the Go toolchain is used when available.
func GetBuildID() string {
	if buildID != "dev" {
		return buildID
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}

	return buildID
}

// GetFullVersion returns version with build ID and Go version.
func GetFullVersion() string {
	return version + " (build: " + GetBuildID() + ", " + runtime.Version() + ")"
}

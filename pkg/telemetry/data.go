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

// Package telemetry produces point-in-time snapshots of the running service
// and projects them into anonymized or flat metric views.
package telemetry

import "time"

const (
	// DetailsBasic adds host, request and component data.
	DetailsBasic uint = 1
	// DetailsFull adds Go runtime statistics and component labels.
	DetailsFull uint = 2
	// MetricsDetailsLevel is the fixed level used for the metrics view.
	MetricsDetailsLevel = DetailsBasic
)

// Data is one snapshot. It is never modified after PrepareData returns it.
type Data struct {
	ID           string                        `json:"id"`
	App          AppInfo                       `json:"app"`
	System       *SystemInfo                   `json:"system,omitempty"`
	Requests     map[string]RouteStats         `json:"requests,omitempty"`
	Components   map[string]ComponentTelemetry `json:"components,omitempty"`
	Runtime      *RuntimeInfo                  `json:"runtime,omitempty"`
	Locks        LockInfo                      `json:"locks"`
	Anonymized   bool                          `json:"anonymized"`
	DetailsLevel uint                          `json:"details_level"`
}

type AppInfo struct {
	Name          string    `json:"name"`
	Version       string    `json:"version"`
	BuildID       string    `json:"build_id"`
	StartedAt     time.Time `json:"started_at"`
	UptimeSeconds float64   `json:"uptime_seconds"`
}

// SystemInfo describes the host. Hostname, HostID, BootTime and Addresses
// identify the machine and are removed or hashed by Anonymize.
type SystemInfo struct {
	Hostname          string   `json:"hostname"`
	HostID            string   `json:"host_id,omitempty"`
	OS                string   `json:"os"`
	Platform          string   `json:"platform"`
	PlatformVersion   string   `json:"platform_version"`
	KernelVersion     string   `json:"kernel_version"`
	Arch              string   `json:"arch"`
	BootTime          uint64   `json:"boot_time,omitempty"`
	Addresses         []string `json:"addresses,omitempty"`
	CPUCount          int      `json:"cpu_count"`
	CPUUsagePercent   float64  `json:"cpu_usage_percent"`
	MemoryTotalBytes  uint64   `json:"memory_total_bytes"`
	MemoryUsedBytes   uint64   `json:"memory_used_bytes"`
	MemoryUsedPercent float64  `json:"memory_used_percent"`
}

// RouteStats aggregates requests for one "METHOD /template" key.
type RouteStats struct {
	Count       uint64            `json:"count"`
	Errors      uint64            `json:"errors"`
	AvgSeconds  float64           `json:"avg_seconds"`
	MinSeconds  float64           `json:"min_seconds"`
	MaxSeconds  float64           `json:"max_seconds"`
	LastSeconds float64           `json:"last_seconds"`
	Statuses    map[string]uint64 `json:"statuses,omitempty"`
}

// ComponentTelemetry is what a registered Source reports.
type ComponentTelemetry struct {
	Values map[string]float64 `json:"values,omitempty"`
	Labels map[string]string  `json:"labels,omitempty"`
}

type RuntimeInfo struct {
	GoVersion        string `json:"go_version"`
	GOMAXPROCS       int    `json:"gomaxprocs"`
	Goroutines       int    `json:"goroutines"`
	HeapAllocBytes   uint64 `json:"heap_alloc_bytes"`
	HeapObjects      uint64 `json:"heap_objects"`
	TotalAllocBytes  uint64 `json:"total_alloc_bytes"`
	NumGC            uint32 `json:"num_gc"`
	GCPauseTotalNano uint64 `json:"gc_pause_total_ns"`
}

type LockInfo struct {
	Write bool `json:"write"`
}

// clone returns a deep copy so transformations never touch the original.
func (d *Data) clone() *Data {
	out := *d

	if d.System != nil {
		sys := *d.System
		sys.Addresses = append([]string(nil), d.System.Addresses...)
		out.System = &sys
	}

	if d.Requests != nil {
		out.Requests = make(map[string]RouteStats, len(d.Requests))

		for k, v := range d.Requests {
			v.Statuses = cloneCounts(v.Statuses)
			out.Requests[k] = v
		}
	}

	if d.Components != nil {
		out.Components = make(map[string]ComponentTelemetry, len(d.Components))

		for k, v := range d.Components {
			out.Components[k] = ComponentTelemetry{
				Values: cloneValues(v.Values),
				Labels: cloneLabels(v.Labels),
			}
		}
	}

	if d.Runtime != nil {
		rt := *d.Runtime
		out.Runtime = &rt
	}

	return &out
}

func cloneCounts(in map[string]uint64) map[string]uint64 {
	if in == nil {
		return nil
	}

	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}

func cloneValues(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}

	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}

func cloneLabels(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}

	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}

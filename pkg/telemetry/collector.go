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
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/carverauto/serviceradar-admin/pkg/logger"
	"github.com/carverauto/serviceradar-admin/pkg/version"
)

const defaultAppName = "serviceradar-admin"

// Aggregator is the default Collector. It combines process, host, request and
// lock information with whatever component Sources the engine registers.
type Aggregator struct {
	id        string
	appName   string
	startedAt time.Time
	log       logger.Logger

	locks    LockReader
	requests *RequestStats

	sourcesMu sync.RWMutex
	sources   map[string]Source

	closed atomic.Bool

	hostInfo       func(context.Context) (*host.InfoStat, error)
	usageCollector func(context.Context, time.Duration, bool) ([]float64, error)
	cpuCounter     func(context.Context, bool) (int, error)
	memCollector   func(context.Context) (*mem.VirtualMemoryStat, error)
	addrCollector  func(context.Context) ([]string, error)
}

type AggregatorOption func(*Aggregator)

func WithAppName(name string) AggregatorOption {
	return func(a *Aggregator) {
		a.appName = name
	}
}

func WithLockReader(r LockReader) AggregatorOption {
	return func(a *Aggregator) {
		a.locks = r
	}
}

func WithRequestStats(s *RequestStats) AggregatorOption {
	return func(a *Aggregator) {
		a.requests = s
	}
}

func WithSources(sources ...Source) AggregatorOption {
	return func(a *Aggregator) {
		for _, src := range sources {
			a.sources[src.Name()] = src
		}
	}
}

func NewAggregator(log logger.Logger, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		id:             uuid.New().String(),
		appName:        defaultAppName,
		startedAt:      time.Now().UTC(),
		log:            log,
		sources:        make(map[string]Source),
		hostInfo:       host.InfoWithContext,
		usageCollector: cpu.PercentWithContext,
		cpuCounter:     cpu.CountsWithContext,
		memCollector:   mem.VirtualMemoryWithContext,
		addrCollector:  localAddresses,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// ID is the instance identifier reported in every snapshot.
func (a *Aggregator) ID() string {
	return a.id
}

// Register adds or replaces the Source with the same name.
func (a *Aggregator) Register(src Source) {
	a.sourcesMu.Lock()
	a.sources[src.Name()] = src
	a.sourcesMu.Unlock()
}

// Close makes subsequent PrepareData calls fail with ErrCollectorClosed.
func (a *Aggregator) Close() {
	a.closed.Store(true)
}

func (a *Aggregator) PrepareData(ctx context.Context, detailsLevel uint) (*Data, error) {
	if a.closed.Load() {
		return nil, ErrCollectorClosed
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := &Data{
		ID: a.id,
		App: AppInfo{
			Name:          a.appName,
			Version:       version.GetVersion(),
			BuildID:       version.GetBuildID(),
			StartedAt:     a.startedAt,
			UptimeSeconds: time.Since(a.startedAt).Seconds(),
		},
		DetailsLevel: detailsLevel,
	}

	if a.locks != nil {
		data.Locks.Write = a.locks.Get().Write
	}

	if detailsLevel >= DetailsBasic {
		data.System = a.collectSystem(ctx)

		if a.requests != nil {
			data.Requests = a.requests.Snapshot()
		}

		data.Components = a.collectComponents(ctx, detailsLevel)
	}

	if detailsLevel >= DetailsFull {
		data.Runtime = collectRuntime()
	}

	return data, nil
}

// collectSystem is best effort: a failed probe leaves its fields zero.
func (a *Aggregator) collectSystem(ctx context.Context) *SystemInfo {
	sys := &SystemInfo{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}

	if info, err := a.hostInfo(ctx); err != nil {
		a.log.Warn().Err(err).Msg("host info collection failed")
	} else {
		sys.Hostname = info.Hostname
		sys.HostID = info.HostID
		sys.Platform = info.Platform
		sys.PlatformVersion = info.PlatformVersion
		sys.KernelVersion = info.KernelVersion
		sys.BootTime = info.BootTime

		if info.KernelArch != "" {
			sys.Arch = info.KernelArch
		}
	}

	if count, err := a.cpuCounter(ctx, true); err != nil {
		a.log.Warn().Err(err).Msg("cpu count collection failed")
	} else {
		sys.CPUCount = count
	}

	if usage, err := a.usageCollector(ctx, 0, false); err != nil {
		a.log.Warn().Err(err).Msg("cpu usage collection failed")
	} else if len(usage) > 0 {
		sys.CPUUsagePercent = usage[0]
	}

	if vm, err := a.memCollector(ctx); err != nil {
		a.log.Warn().Err(err).Msg("memory collection failed; reporting zeroes")
	} else {
		sys.MemoryTotalBytes = vm.Total
		sys.MemoryUsedBytes = vm.Used
		sys.MemoryUsedPercent = vm.UsedPercent
	}

	if addrs, err := a.addrCollector(ctx); err != nil {
		a.log.Debug().Err(err).Msg("interface address collection failed")
	} else {
		sys.Addresses = addrs
	}

	return sys
}

func (a *Aggregator) collectComponents(ctx context.Context, detailsLevel uint) map[string]ComponentTelemetry {
	a.sourcesMu.RLock()
	sources := make([]Source, 0, len(a.sources))

	for _, src := range a.sources {
		sources = append(sources, src)
	}
	a.sourcesMu.RUnlock()

	if len(sources) == 0 {
		return nil
	}

	out := make(map[string]ComponentTelemetry, len(sources))

	for _, src := range sources {
		ct, err := src.Collect(ctx, detailsLevel)
		if err != nil {
			a.log.Warn().Err(err).Str("source", src.Name()).Msg("component telemetry collection failed")
			continue
		}

		if detailsLevel < DetailsFull {
			ct.Labels = nil
		}

		out[src.Name()] = ct
	}

	return out
}

func collectRuntime() *RuntimeInfo {
	var ms runtime.MemStats

	runtime.ReadMemStats(&ms)

	return &RuntimeInfo{
		GoVersion:        runtime.Version(),
		GOMAXPROCS:       runtime.GOMAXPROCS(0),
		Goroutines:       runtime.NumGoroutine(),
		HeapAllocBytes:   ms.HeapAlloc,
		HeapObjects:      ms.HeapObjects,
		TotalAllocBytes:  ms.TotalAlloc,
		NumGC:            ms.NumGC,
		GCPauseTotalNano: ms.PauseTotalNs,
	}
}

func localAddresses(ctx context.Context) ([]string, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var addrs []string

	for _, iface := range ifaces {
		if isLoopback(iface.Flags) {
			continue
		}

		for _, addr := range iface.Addrs {
			addrs = append(addrs, addr.Addr)
		}
	}

	sort.Strings(addrs)

	return addrs, nil
}

func isLoopback(flags []string) bool {
	for _, f := range flags {
		if f == "loopback" {
			return true
		}
	}

	return false
}

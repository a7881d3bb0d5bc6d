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
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/serviceradar-admin/pkg/locks"
	"github.com/carverauto/serviceradar-admin/pkg/logger"
)

var errProbe = errors.New("probe failed")

func newStubbedAggregator(t *testing.T, opts ...AggregatorOption) *Aggregator {
	t.Helper()

	a := NewAggregator(logger.NewTestLogger(), opts...)
	a.hostInfo = func(context.Context) (*host.InfoStat, error) {
		return &host.InfoStat{Hostname: "node-a", HostID: "hid", Platform: "ubuntu", KernelArch: "x86_64", BootTime: 10}, nil
	}
	a.cpuCounter = func(context.Context, bool) (int, error) { return 4, nil }
	a.usageCollector = func(context.Context, time.Duration, bool) ([]float64, error) { return []float64{12.5}, nil }
	a.memCollector = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: 100, Used: 40, UsedPercent: 40}, nil
	}
	a.addrCollector = func(context.Context) ([]string, error) { return []string{"192.0.2.1/24"}, nil }

	return a
}

func TestAggregator_DetailLevels(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)

	src.EXPECT().Name().Return("storage").AnyTimes()
	src.EXPECT().Collect(gomock.Any(), gomock.Any()).Return(ComponentTelemetry{
		Values: map[string]float64{"segments": 3},
		Labels: map[string]string{"path": "/data"},
	}, nil).AnyTimes()

	lockCtl := locks.NewController(logger.NewTestLogger())
	lockCtl.Set(true, nil)

	a := newStubbedAggregator(t, WithSources(src), WithLockReader(lockCtl), WithAppName("engine"))

	basic, err := a.PrepareData(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, a.ID(), basic.ID)
	assert.Equal(t, "engine", basic.App.Name)
	assert.True(t, basic.Locks.Write)
	assert.Nil(t, basic.System)
	assert.Nil(t, basic.Components)
	assert.Nil(t, basic.Runtime)

	detailed, err := a.PrepareData(context.Background(), DetailsBasic)
	require.NoError(t, err)
	require.NotNil(t, detailed.System)
	assert.Equal(t, "node-a", detailed.System.Hostname)
	assert.Equal(t, "x86_64", detailed.System.Arch)
	assert.Equal(t, 4, detailed.System.CPUCount)
	assert.InDelta(t, 12.5, detailed.System.CPUUsagePercent, 0)
	assert.Equal(t, uint64(40), detailed.System.MemoryUsedBytes)
	assert.Nil(t, detailed.Components["storage"].Labels)
	assert.Nil(t, detailed.Runtime)

	full, err := a.PrepareData(context.Background(), DetailsFull)
	require.NoError(t, err)
	require.NotNil(t, full.Runtime)
	assert.Positive(t, full.Runtime.Goroutines)
	assert.Equal(t, "/data", full.Components["storage"].Labels["path"])
}

func TestAggregator_ProbeFailuresAreBestEffort(t *testing.T) {
	a := newStubbedAggregator(t)
	a.memCollector = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, errProbe }
	a.hostInfo = func(context.Context) (*host.InfoStat, error) { return nil, errProbe }

	data, err := a.PrepareData(context.Background(), DetailsBasic)
	require.NoError(t, err)

	assert.Empty(t, data.System.Hostname)
	assert.Zero(t, data.System.MemoryTotalBytes)
	assert.Equal(t, 4, data.System.CPUCount)
}

func TestAggregator_FailingSourceIsSkipped(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)

	src.EXPECT().Name().Return("broken").AnyTimes()
	src.EXPECT().Collect(gomock.Any(), DetailsBasic).Return(ComponentTelemetry{}, errProbe)

	a := newStubbedAggregator(t)
	a.Register(src)

	data, err := a.PrepareData(context.Background(), DetailsBasic)
	require.NoError(t, err)
	assert.NotContains(t, data.Components, "broken")
}

func TestAggregator_RequestStats(t *testing.T) {
	stats, err := NewRequestStats(nil)
	require.NoError(t, err)

	stats.Observe(context.Background(), "GET", "/locks", 200, time.Millisecond)

	a := newStubbedAggregator(t, WithRequestStats(stats))

	data, err := a.PrepareData(context.Background(), DetailsBasic)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), data.Requests["GET /locks"].Count)
}

func TestAggregator_Close(t *testing.T) {
	a := newStubbedAggregator(t)
	a.Close()

	_, err := a.PrepareData(context.Background(), 0)
	require.ErrorIs(t, err, ErrCollectorClosed)
}
